package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"plugindir/internal/config"
	"plugindir/internal/db"

	"github.com/stretchr/testify/require"
)

func newCommentService(t *testing.T, subjects *memSubjects, cfg config.EngagementConfig) (*CommentService, *fakeClock) {
	t.Helper()
	clock := newClock()
	store := newMemoryCache(t, clock)
	svc := NewCommentService(store, subjects, NewIdentityResolver(testCookies()), NewRateLimiter(store), cfg)
	svc.now = clock.Now
	return svc, clock
}

func submit(t *testing.T, svc *CommentService, v *Visitor, author, text string) *CommentResult {
	t.Helper()
	res, err := svc.Submit(context.Background(), v, CommentInput{SubjectID: "s", Author: author, Text: text})
	require.NoError(t, err)
	return res
}

func TestStaticRules(t *testing.T) {
	cases := []struct {
		name, author, text, honeypot, rule string
	}{
		{"valid", "alice", "A perfectly reasonable comment.", "", ""},
		{"honeypot", "alice", "A perfectly reasonable comment.", "http://bot", "honeypot"},
		{"author too short", "a", "A perfectly reasonable comment.", "", "author"},
		{"author too long", strings.Repeat("ab", 26), "A perfectly reasonable comment.", "", "author"},
		{"author repeats", "bobbbbby", "A perfectly reasonable comment.", "", "author"},
		{"text too short", "alice", "too short", "", "length"},
		{"text too long", "alice", strings.Repeat("word ", 201), "", "length"},
		{"three links", "alice", "see a.com and b.org and www.c.net", "", "links"},
		{"two links ok", "alice", "compare https://a.io/x with b.org please", "", ""},
		{"text repeats", "alice", "wowwwwwwwww what a plugin", "", "repeat"},
		{"eight repeats ok", "alice", "woww!!!!!!!! nice plugin", "", ""},
		{"spam near link", "alice", "Get cheap followers at https://spam.example.com today", "", "spam"},
		{"keyword without link", "alice", "It was cheap to set up and works well", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := &Submission{Author: tc.author, Text: tc.text, Honeypot: tc.honeypot}
			var got *Rejection
			for _, rule := range StaticRules() {
				rej, err := rule.Check(context.Background(), sub)
				require.NoError(t, err)
				if rej != nil {
					got = rej
					break
				}
			}
			if tc.rule == "" {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tc.rule, got.Rule)
			require.NotEmpty(t, got.Message)
		})
	}
}

func TestLongestRun(t *testing.T) {
	require.Equal(t, 0, LongestRun(""))
	require.Equal(t, 1, LongestRun("abc"))
	require.Equal(t, 4, LongestRun("heyyyy"))
	require.Equal(t, 3, LongestRun("好好好的"))
}

func TestHasSpamNearLink_CountsRunes(t *testing.T) {
	near := "cheap " + strings.Repeat("好", 40) + " https://shop.example.com"
	require.True(t, HasSpamNearLink(near), "keyword ends 41 runes before the link")

	far := "cheap " + strings.Repeat("好", 60) + " https://shop.example.com"
	require.False(t, HasSpamNearLink(far))

	after := "https://shop.example.com " + strings.Repeat("é", 40) + " casino"
	require.True(t, HasSpamNearLink(after))
}

func TestCommentService_Accepts(t *testing.T) {
	subjects := newSubjects("s")
	svc, clock := newCommentService(t, subjects, testEngagement())
	v := newVisitor()

	res := submit(t, svc, v, "  alice ", "  Works great with my vault.  ")
	require.True(t, res.Accepted)
	require.Nil(t, res.Rejection)
	require.Equal(t, "alice", res.Comment.Author)
	require.Equal(t, "Works great with my vault.", res.Comment.Text)
	require.Equal(t, clock.Now(), res.Comment.CreatedAt)
	require.Contains(t, v.Cookies.(*fakeJar).values, "pd_comment_id")

	list, err := svc.List(context.Background(), "s")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Contains(t, string(list[0].HTML), "Works great with my vault.")
}

func TestCommentService_HoneypotAlwaysRejected(t *testing.T) {
	subjects := newSubjects("s")
	svc, _ := newCommentService(t, subjects, testEngagement())

	res, err := svc.Submit(context.Background(), newVisitor(), CommentInput{
		SubjectID: "s", Author: "alice", Text: "A perfectly reasonable comment.", Honeypot: "x",
	})
	require.NoError(t, err)
	require.False(t, res.Accepted)
	require.Equal(t, "honeypot", res.Rejection.Rule)
	require.Empty(t, subjects.comments)
}

func TestCommentService_Cooldown(t *testing.T) {
	svc, clock := newCommentService(t, newSubjects("s"), testEngagement())
	v := newVisitor()

	require.True(t, submit(t, svc, v, "alice", "First thoughts on this plugin.").Accepted)

	clock.Advance(10 * time.Second)
	res := submit(t, svc, v, "Alice", "Another unrelated remark here.")
	require.False(t, res.Accepted)
	require.Equal(t, "cooldown", res.Rejection.Rule)
	require.Equal(t, "Please wait 20 seconds before commenting again.", res.Rejection.Message)

	// Other authors are not held back.
	require.True(t, submit(t, svc, v, "bob", "Another unrelated remark here.").Accepted)

	clock.Advance(20 * time.Second)
	require.True(t, submit(t, svc, v, "alice", "Another unrelated remark here.").Accepted)
}

func TestCommentService_NearDuplicate(t *testing.T) {
	svc, clock := newCommentService(t, newSubjects("s"), testEngagement())
	v := newVisitor()

	require.True(t, submit(t, svc, v, "alice", "This plugin is great and useful").Accepted)

	clock.Advance(31 * time.Second)
	res := submit(t, svc, v, "alice", "This plugin is great and useful!")
	require.False(t, res.Accepted)
	require.Equal(t, "duplicate", res.Rejection.Rule)

	require.True(t, submit(t, svc, v, "alice", "Sync broke after the last update.").Accepted)

	clock.Advance(31 * time.Second)
	require.True(t, submit(t, svc, v, "alice", "This plugin is great and useful").Accepted,
		"only the latest text is compared")
}

func TestCommentService_Quota(t *testing.T) {
	cfg := testEngagement()
	cfg.CommentQuota = 2
	svc, clock := newCommentService(t, newSubjects("s"), cfg)
	v := newVisitor()

	require.True(t, submit(t, svc, v, "alice", "First thoughts on this plugin.").Accepted)
	require.True(t, submit(t, svc, v, "bob", "First thoughts on this plugin.").Accepted)

	res := submit(t, svc, v, "carol", "First thoughts on this plugin.")
	require.False(t, res.Accepted)
	require.Equal(t, "quota", res.Rejection.Rule)

	// A different browser has its own quota.
	require.True(t, submit(t, svc, newVisitor(), "carol", "First thoughts on this plugin.").Accepted)

	clock.Advance(time.Hour)
	require.True(t, submit(t, svc, v, "dave", "First thoughts on this plugin.").Accepted)
}

func TestCommentService_CacheDownSkipsStatefulRules(t *testing.T) {
	subjects := newSubjects("s")
	svc := NewCommentService(downCache{}, subjects, NewIdentityResolver(testCookies()), NewRateLimiter(downCache{}), testEngagement())
	v := newVisitor()

	require.True(t, submit(t, svc, v, "alice", "This plugin is great and useful").Accepted)
	require.True(t, submit(t, svc, v, "alice", "This plugin is great and useful").Accepted)
	require.Len(t, subjects.comments, 2)

	// Static rules still apply.
	require.Equal(t, "length", submit(t, svc, v, "alice", "short").Rejection.Rule)
}

func TestCommentService_UnknownSubject(t *testing.T) {
	svc, _ := newCommentService(t, newSubjects(), testEngagement())

	_, err := svc.Submit(context.Background(), newVisitor(), CommentInput{SubjectID: "ghost", Author: "alice", Text: "Nice plugin, thanks!"})
	require.ErrorIs(t, err, db.ErrSubjectNotFound)

	_, err = svc.List(context.Background(), "ghost")
	require.ErrorIs(t, err, db.ErrSubjectNotFound)
}

func TestCommentService_ColonInAuthorDoesNotCollide(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCommentService(t, newSubjects("x", "x:y"), testEngagement())
	v := newVisitor()

	res, err := svc.Submit(ctx, v, CommentInput{SubjectID: "x", Author: "y:z", Text: "First thoughts on this plugin."})
	require.NoError(t, err)
	require.True(t, res.Accepted)

	res, err = svc.Submit(ctx, v, CommentInput{SubjectID: "x:y", Author: "z", Text: "First thoughts on this plugin."})
	require.NoError(t, err)
	require.True(t, res.Accepted, "a different subject and author must not inherit the cooldown")
}
