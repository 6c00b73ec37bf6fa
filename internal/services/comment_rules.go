package services

import (
	"context"
	"fmt"
	"math"
	"plugindir/internal/cache"
	"plugindir/internal/utils"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// 评论校验规则常量
const (
	AuthorMinLen        = 2
	AuthorMaxLen        = 50
	AuthorMaxRepeat     = 5 // a rune repeated this many times in a row is rejected
	TextMinLen          = 10
	TextMaxLen          = 1000
	TextMaxRepeat       = 9
	MaxLinksPerComment  = 2
	SpamLinkProximity   = 50 // runes either side of a link searched for spam keywords
	lastCommentTTL      = time.Hour
	defaultDupThreshold = 0.8
)

var (
	urlPattern = regexp.MustCompile(`(?i)(?:https?://\S+|www\.\S+|\b[a-z0-9-]+\.(?:com|net|org|io|co|xyz|info|biz|ru|top|site|online|shop|link|click)\b(?:/\S*)?)`)

	spamKeywords = []string{
		"casino", "viagra", "cialis", "crypto", "bitcoin", "forex", "payday", "loan",
		"porn", "xxx", "betting", "buy now", "cheap", "discount", "free money",
		"click here", "make money", "earn money", "seo service", "followers",
	}
)

// CommentInput is what the caller submits.
type CommentInput struct {
	SubjectID string
	Author    string
	Text      string
	Honeypot  string
}

// Submission is a trimmed CommentInput plus request context the rules need.
type Submission struct {
	SubjectID string
	Author    string
	Text      string
	Honeypot  string
	Identity  string
	Now       time.Time
}

// Rejection names the first rule a submission failed and the message shown to the user.
type Rejection struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (r *Rejection) Error() string {
	return r.Rule + ": " + r.Message
}

func reject(rule, format string, args ...interface{}) *Rejection {
	return &Rejection{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// CommentRule is one step of the comment pipeline. A nil Rejection with a nil error passes.
// An error reports an infrastructure failure, not a verdict.
type CommentRule interface {
	Check(ctx context.Context, sub *Submission) (*Rejection, error)
}

// RuleFunc adapts a pure check to CommentRule.
type RuleFunc func(sub *Submission) *Rejection

func (f RuleFunc) Check(_ context.Context, sub *Submission) (*Rejection, error) {
	return f(sub), nil
}

// StaticRules are the storage-free heuristics, in evaluation order.
func StaticRules() []CommentRule {
	return []CommentRule{
		RuleFunc(checkHoneypot),
		RuleFunc(checkAuthor),
		RuleFunc(checkLength),
		RuleFunc(checkLinks),
		RuleFunc(checkRepeats),
		RuleFunc(checkSpam),
	}
}

func checkHoneypot(sub *Submission) *Rejection {
	if sub.Honeypot != "" {
		return reject("honeypot", "Your comment could not be submitted.")
	}
	return nil
}

func checkAuthor(sub *Submission) *Rejection {
	n := utf8.RuneCountInString(sub.Author)
	if n < AuthorMinLen || n > AuthorMaxLen {
		return reject("author", "Name must be between %d and %d characters.", AuthorMinLen, AuthorMaxLen)
	}
	if LongestRun(sub.Author) >= AuthorMaxRepeat {
		return reject("author", "Name contains too many repeated characters.")
	}
	return nil
}

func checkLength(sub *Submission) *Rejection {
	n := utf8.RuneCountInString(sub.Text)
	if n < TextMinLen || n > TextMaxLen {
		return reject("length", "Comment must be between %d and %d characters.", TextMinLen, TextMaxLen)
	}
	return nil
}

func checkLinks(sub *Submission) *Rejection {
	if len(urlPattern.FindAllStringIndex(sub.Text, -1)) > MaxLinksPerComment {
		return reject("links", "Comments may contain at most %d links.", MaxLinksPerComment)
	}
	return nil
}

func checkRepeats(sub *Submission) *Rejection {
	if LongestRun(sub.Text) >= TextMaxRepeat {
		return reject("repeat", "Comment contains too many repeated characters.")
	}
	return nil
}

func checkSpam(sub *Submission) *Rejection {
	if HasSpamNearLink(sub.Text) {
		return reject("spam", "Comment looks like promotional spam.")
	}
	return nil
}

// LongestRun returns the length of the longest run of one repeated rune in s.
func LongestRun(s string) int {
	longest, run := 0, 0
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		longest = max(longest, run)
	}
	return longest
}

// HasSpamNearLink reports whether a spam keyword appears within SpamLinkProximity runes of a
// URL-like substring.
func HasSpamNearLink(text string) bool {
	lower := strings.ToLower(text)
	for _, loc := range urlPattern.FindAllStringIndex(lower, -1) {
		window := lower[runesBefore(lower, loc[0], SpamLinkProximity):runesAfter(lower, loc[1], SpamLinkProximity)]
		for _, kw := range spamKeywords {
			if strings.Contains(window, kw) {
				return true
			}
		}
	}
	return false
}

// runesBefore returns the byte offset n runes before i in s.
func runesBefore(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

// runesAfter returns the byte offset n runes after i in s.
func runesAfter(s string, i, n int) int {
	for ; n > 0 && i < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return i
}

func authorKey(author string) string {
	return strings.ToLower(strings.TrimSpace(author))
}

func lastCommentKey(subjectID, author string) string {
	return cache.Key("comment", "last", subjectID, authorKey(author))
}

func lastTextKey(subjectID, author string) string {
	return cache.Key("comment", "text", subjectID, authorKey(author))
}

// cooldownRule rejects a second comment by the same author on the same subject too soon.
type cooldownRule struct {
	cache  cache.Store
	window time.Duration
}

func (r *cooldownRule) Check(ctx context.Context, sub *Submission) (*Rejection, error) {
	raw, ok, err := r.cache.Get(ctx, lastCommentKey(sub.SubjectID, sub.Author))
	if err != nil || !ok {
		return nil, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, nil
	}
	elapsed := sub.Now.Sub(time.UnixMilli(ms))
	if elapsed >= 0 && elapsed < r.window {
		wait := int(math.Ceil((r.window - elapsed).Seconds()))
		return reject("cooldown", "Please wait %d seconds before commenting again.", wait), nil
	}
	return nil, nil
}

// duplicateRule rejects text too similar to the author's previous comment on the subject.
type duplicateRule struct {
	cache     cache.Store
	threshold float64
}

func (r *duplicateRule) Check(ctx context.Context, sub *Submission) (*Rejection, error) {
	prev, ok, err := r.cache.Get(ctx, lastTextKey(sub.SubjectID, sub.Author))
	if err != nil || !ok {
		return nil, err
	}
	if utils.Similarity(prev, sub.Text) > r.threshold {
		return reject("duplicate", "You already posted a very similar comment."), nil
	}
	return nil, nil
}

// quotaRule caps accepted comments per comment identity. It runs last, so only submissions
// that passed every other rule consume quota.
type quotaRule struct {
	limiter *RateLimiter
	limit   int
	window  time.Duration
}

func (r *quotaRule) Check(ctx context.Context, sub *Submission) (*Rejection, error) {
	allowed, err := r.limiter.Allow(ctx, RateLimitKey("comment", sub.Identity), r.limit, r.window)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return reject("quota", "Too many comments from this browser. Try again later."), nil
	}
	return nil, nil
}
