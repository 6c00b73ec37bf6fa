package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"plugindir/internal/cache"
	"plugindir/internal/config"
	"plugindir/internal/db"
	"plugindir/internal/models"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	dailyViewsTTL  = 8 * 24 * time.Hour
	weeklyViewsTTL = 31 * 24 * time.Hour
)

type ViewResult struct {
	Counted bool `json:"counted"`
	Views   int  `json:"views"`
}

// ViewStats 浏览量统计 (按自然日 / ISO 周，UTC)
type ViewStats struct {
	SubjectID string `json:"subject_id"`
	Day       string `json:"day"`
	Week      string `json:"week"`
	DayViews  int64  `json:"day_views"`
	WeekViews int64  `json:"week_views"`
	Degraded  bool   `json:"degraded,omitempty"` // cache unreachable, counts unknown
}

// ViewService counts at most one view per identity per subject per window and keeps
// daily/weekly hit counters for reporting.
type ViewService struct {
	cache    cache.Store
	subjects SubjectStore
	window   time.Duration
	now      func() time.Time
}

func NewViewService(store cache.Store, subjects SubjectStore, cfg config.EngagementConfig) *ViewService {
	return &ViewService{
		cache:    store,
		subjects: subjects,
		window:   cfg.ViewWindow,
		now:      time.Now,
	}
}

func viewMarkerKey(identity, subjectID string) string {
	return cache.Key("view", identity, subjectID)
}

func dailyViewsKey(subjectID string, t time.Time) string {
	return cache.Key("views", "day", subjectID, t.UTC().Format("2006-01-02"))
}

func weeklyViewsKey(subjectID string, t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return cache.Key("views", "week", subjectID, fmt.Sprintf("%d-W%02d", year, week))
}

// Record counts a view unless identity already viewed subjectID within the window.
//
// The marker is claimed with INCR, so two concurrent first views from the same identity
// count once. If the cache is unreachable, dedup is skipped and the view is counted.
func (s *ViewService) Record(ctx context.Context, identity, subjectID string) (*ViewResult, error) {
	marker := viewMarkerKey(identity, subjectID)

	first := true
	n, err := s.cache.Incr(ctx, marker)
	switch {
	case err != nil:
		slog.Warn("View dedup skipped", "subject", subjectID, "error", err)
	case n == 1:
		if err := s.cache.Expire(ctx, marker, s.window); err != nil {
			slog.Warn("View marker TTL not set", "subject", subjectID, "error", err)
			_ = s.cache.Del(ctx, marker)
		}
	default:
		first = false
	}

	if !first {
		subject, err := s.subjects.FindByID(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		s.bumpAnalytics(ctx, subjectID)
		return &ViewResult{Counted: false, Views: subject.Views}, nil
	}

	subject, err := s.subjects.AddCounters(ctx, subjectID, models.CounterDelta{Views: 1})
	if err != nil {
		if errors.Is(err, db.ErrSubjectNotFound) {
			_ = s.cache.Del(ctx, marker)
		}
		return nil, err
	}
	s.bumpAnalytics(ctx, subjectID)
	return &ViewResult{Counted: true, Views: subject.Views}, nil
}

// bumpAnalytics increments the daily and weekly hit counters. Failures are logged only.
func (s *ViewService) bumpAnalytics(ctx context.Context, subjectID string) {
	now := s.now()

	var g errgroup.Group
	g.Go(func() error { return s.bump(ctx, dailyViewsKey(subjectID, now), dailyViewsTTL) })
	g.Go(func() error { return s.bump(ctx, weeklyViewsKey(subjectID, now), weeklyViewsTTL) })
	if err := g.Wait(); err != nil {
		slog.Warn("View analytics not recorded", "subject", subjectID, "error", err)
	}
}

func (s *ViewService) bump(ctx context.Context, key string, ttl time.Duration) error {
	n, err := s.cache.Incr(ctx, key)
	if err != nil {
		return err
	}
	if n == 1 {
		return s.cache.Expire(ctx, key, ttl)
	}
	return nil
}

// Stats reads the analytics counters for the day (and its ISO week) containing day.
func (s *ViewService) Stats(ctx context.Context, subjectID string, day time.Time) (*ViewStats, error) {
	if _, err := s.subjects.FindByID(ctx, subjectID); err != nil {
		return nil, err
	}

	year, week := day.UTC().ISOWeek()
	stats := &ViewStats{
		SubjectID: subjectID,
		Day:       day.UTC().Format("2006-01-02"),
		Week:      fmt.Sprintf("%d-W%02d", year, week),
	}

	var err error
	if stats.DayViews, err = s.counter(ctx, dailyViewsKey(subjectID, day)); err == nil {
		stats.WeekViews, err = s.counter(ctx, weeklyViewsKey(subjectID, day))
	}
	if err != nil {
		if !errors.Is(err, cache.ErrUnavailable) {
			return nil, err
		}
		slog.Warn("View analytics unavailable", "subject", subjectID, "error", err)
		stats.DayViews, stats.WeekViews, stats.Degraded = 0, 0, true
	}
	return stats, nil
}

func (s *ViewService) counter(ctx context.Context, key string) (int64, error) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %q is not an integer: %w", key, err)
	}
	return n, nil
}
