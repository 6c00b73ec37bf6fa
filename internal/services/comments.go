package services

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"plugindir/internal/cache"
	"plugindir/internal/config"
	"plugindir/internal/models"
	"plugindir/internal/utils"
	"strconv"
	"strings"
	"time"
)

type CommentResult struct {
	Accepted  bool            `json:"accepted"`
	Comment   *models.Comment `json:"comment,omitempty"`
	Rejection *Rejection      `json:"rejection,omitempty"`
}

// RenderedComment is a stored comment plus its sanitized HTML.
type RenderedComment struct {
	models.Comment
	HTML template.HTML `json:"html"`
}

// CommentService runs submissions through the ordered rule pipeline and stores accepted ones.
type CommentService struct {
	identities *IdentityResolver
	subjects   SubjectStore
	cache      cache.Store
	rules      []CommentRule

	dupWindow time.Duration
	listLimit int
	now       func() time.Time
}

func NewCommentService(store cache.Store, subjects SubjectStore, identities *IdentityResolver, limiter *RateLimiter, cfg config.EngagementConfig) *CommentService {
	threshold := cfg.DuplicateThreshold
	if threshold <= 0 {
		threshold = defaultDupThreshold
	}

	rules := StaticRules()
	rules = append(rules,
		&cooldownRule{cache: store, window: cfg.CommentCooldown},
		&duplicateRule{cache: store, threshold: threshold},
		&quotaRule{limiter: limiter, limit: cfg.CommentQuota, window: cfg.CommentQuotaWindow},
	)

	return &CommentService{
		identities: identities,
		subjects:   subjects,
		cache:      store,
		rules:      rules,
		dupWindow:  cfg.DuplicateWindow,
		listLimit:  cfg.CommentListLimit,
		now:        time.Now,
	}
}

// Submit validates in and appends it to the subject's comments. Only the first failing rule
// is reported. Cache failures inside a rule skip that rule.
func (s *CommentService) Submit(ctx context.Context, v *Visitor, in CommentInput) (*CommentResult, error) {
	if _, err := s.subjects.FindByID(ctx, in.SubjectID); err != nil {
		return nil, err
	}

	sub := &Submission{
		SubjectID: in.SubjectID,
		Author:    strings.TrimSpace(in.Author),
		Text:      strings.TrimSpace(in.Text),
		Honeypot:  in.Honeypot,
		Identity:  s.identities.Resolve(v.Cookies, PurposeComment),
		Now:       s.now(),
	}

	for _, rule := range s.rules {
		rejection, err := rule.Check(ctx, sub)
		if err != nil {
			if !errors.Is(err, cache.ErrUnavailable) {
				return nil, err
			}
			slog.Warn("Comment rule skipped", "rule", ruleName(rule), "subject", sub.SubjectID, "error", err)
			continue
		}
		if rejection != nil {
			slog.Debug("Comment rejected", "rule", rejection.Rule, "subject", sub.SubjectID)
			return &CommentResult{Accepted: false, Rejection: rejection}, nil
		}
	}

	comment := &models.Comment{
		SubjectID: sub.SubjectID,
		Author:    sub.Author,
		Text:      sub.Text,
		CreatedAt: sub.Now,
	}
	if err := s.subjects.AppendComment(ctx, comment); err != nil {
		return nil, err
	}

	s.remember(ctx, sub)
	return &CommentResult{Accepted: true, Comment: comment}, nil
}

// remember records the cooldown timestamp and the text for duplicate detection.
func (s *CommentService) remember(ctx context.Context, sub *Submission) {
	if err := s.cache.Set(ctx, lastCommentKey(sub.SubjectID, sub.Author), strconv.FormatInt(sub.Now.UnixMilli(), 10), lastCommentTTL); err != nil {
		slog.Warn("Comment cooldown not recorded", "subject", sub.SubjectID, "error", err)
	}
	if err := s.cache.Set(ctx, lastTextKey(sub.SubjectID, sub.Author), sub.Text, s.dupWindow); err != nil {
		slog.Warn("Comment text not recorded", "subject", sub.SubjectID, "error", err)
	}
}

// List returns the subject's comments oldest first with rendered HTML.
func (s *CommentService) List(ctx context.Context, subjectID string) ([]RenderedComment, error) {
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		return nil, err
	}
	comments, err := s.subjects.ListComments(ctx, subjectID, s.listLimit)
	if err != nil {
		return nil, err
	}

	out := make([]RenderedComment, len(comments))
	for i, c := range comments {
		out[i] = RenderedComment{Comment: c, HTML: utils.RenderComment(c.Text)}
	}
	return out, nil
}

func ruleName(rule CommentRule) string {
	switch rule.(type) {
	case *cooldownRule:
		return "cooldown"
	case *duplicateRule:
		return "duplicate"
	case *quotaRule:
		return "quota"
	}
	return "static"
}
