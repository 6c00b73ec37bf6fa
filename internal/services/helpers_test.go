package services

import (
	"context"
	"fmt"
	"plugindir/internal/cache"
	"plugindir/internal/config"
	"plugindir/internal/db"
	"plugindir/internal/models"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func newMemoryCache(t *testing.T, clock *fakeClock) *cache.MemoryStore {
	t.Helper()
	s, err := cache.NewMemoryStore(1024)
	require.NoError(t, err)
	return s.WithClock(clock.Now)
}

// downCache fails every call the way an unreachable Redis does.
type downCache struct{}

func (downCache) err(op string) error { return fmt.Errorf("%w: %s refused", cache.ErrUnavailable, op) }

func (d downCache) Get(context.Context, string) (string, bool, error) { return "", false, d.err("GET") }
func (d downCache) Set(context.Context, string, string, time.Duration) error {
	return d.err("SET")
}
func (d downCache) Exists(context.Context, string) (bool, error) { return false, d.err("EXISTS") }
func (d downCache) Incr(context.Context, string) (int64, error)  { return 0, d.err("INCR") }
func (d downCache) Expire(context.Context, string, time.Duration) error {
	return d.err("EXPIRE")
}
func (d downCache) Del(context.Context, string) error { return d.err("DEL") }
func (d downCache) Ping(context.Context) error        { return d.err("PING") }

// memSubjects is an in-process SubjectStore.
type memSubjects struct {
	mu       sync.Mutex
	subjects map[string]*models.Subject
	comments []models.Comment
}

func newSubjects(ids ...string) *memSubjects {
	s := &memSubjects{subjects: map[string]*models.Subject{}}
	for _, id := range ids {
		s.subjects[id] = &models.Subject{ID: id, Kind: "plugin", Title: id}
	}
	return s
}

func (m *memSubjects) FindByID(_ context.Context, id string) (*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return nil, db.ErrSubjectNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubjects) Create(_ context.Context, subject *models.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[subject.ID]; ok {
		return db.ErrSubjectExists
	}
	cp := *subject
	m.subjects[subject.ID] = &cp
	return nil
}

func (m *memSubjects) AddCounters(_ context.Context, id string, d models.CounterDelta) (*models.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return nil, db.ErrSubjectNotFound
	}
	s.Views += d.Views
	s.Upvotes += d.Upvotes
	s.Downvotes += d.Downvotes
	s.Score += d.Score()
	cp := *s
	return &cp, nil
}

func (m *memSubjects) AppendComment(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[c.SubjectID]; !ok {
		return db.ErrSubjectNotFound
	}
	c.ID = uint(len(m.comments) + 1)
	m.comments = append(m.comments, *c)
	return nil
}

func (m *memSubjects) ListComments(_ context.Context, subjectID string, limit int) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Comment
	for _, c := range m.comments {
		if c.SubjectID == subjectID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeJar struct {
	values map[string]string
	ages   map[string]time.Duration
	fail   bool
}

func newJar() *fakeJar {
	return &fakeJar{values: map[string]string{}, ages: map[string]time.Duration{}}
}

func (j *fakeJar) Get(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

func (j *fakeJar) Set(name, value string, maxAge time.Duration) error {
	if j.fail {
		return fmt.Errorf("headers already written")
	}
	j.values[name] = value
	j.ages[name] = maxAge
	return nil
}

type fakeVoteCookie struct {
	votes  map[string]VoteState
	stores int
}

func (c *fakeVoteCookie) Load() (map[string]VoteState, error) {
	out := make(map[string]VoteState, len(c.votes))
	for k, v := range c.votes {
		out[k] = v
	}
	return out, nil
}

func (c *fakeVoteCookie) Store(votes map[string]VoteState) error {
	c.stores++
	c.votes = votes
	return nil
}

func newVisitor() *Visitor {
	return &Visitor{Cookies: newJar(), Votes: &fakeVoteCookie{}}
}

func testCookies() config.CookieConfig {
	return config.CookieConfig{ViewTTL: 720 * time.Hour, VoteTTL: 8760 * time.Hour, CommentTTL: 8760 * time.Hour}
}

func testEngagement() config.EngagementConfig {
	return config.EngagementConfig{
		ViewWindow:          24 * time.Hour,
		VoteLimit:           10,
		VoteWindow:          5 * time.Minute,
		VoteTTL:             8760 * time.Hour,
		CommentCooldown:     30 * time.Second,
		DuplicateWindow:     24 * time.Hour,
		DuplicateThreshold:  0.8,
		CommentQuota:        20,
		CommentQuotaWindow:  time.Hour,
		CommentListLimit:    200,
		VoteCookieMaxRecord: 100,
	}
}
