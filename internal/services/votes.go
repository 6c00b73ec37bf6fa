package services

import (
	"context"
	"errors"
	"log/slog"
	"plugindir/internal/cache"
	"plugindir/internal/config"
	"plugindir/internal/models"
	"time"
)

// ErrInvalidDirection is returned for a requested vote that is neither up, down nor none.
var ErrInvalidDirection = errors.New("invalid vote direction")

type VoteResult struct {
	Upvotes     int       `json:"upvotes"`
	Downvotes   int       `json:"downvotes"`
	Score       int       `json:"score"`
	State       VoteState `json:"state"`
	RateLimited bool      `json:"rate_limited"`
}

func newVoteResult(s *models.Subject, state VoteState) *VoteResult {
	return &VoteResult{
		Upvotes:   s.Upvotes,
		Downvotes: s.Downvotes,
		Score:     s.Score,
		State:     state,
	}
}

func tally(state VoteState, sign int) models.CounterDelta {
	switch state {
	case VoteUp:
		return models.CounterDelta{Upvotes: sign}
	case VoteDown:
		return models.CounterDelta{Downvotes: sign}
	}
	return models.CounterDelta{}
}

// Transition applies a request to the current state: repeating a vote removes it, the
// opposite vote flips it, and VoteNone removes whatever is there. The delta retracts the old
// state's contribution and adds the new one.
func Transition(current, requested VoteState) (VoteState, models.CounterDelta) {
	next := requested
	if requested == current {
		next = VoteNone
	}
	undo, do := tally(current, -1), tally(next, 1)
	return next, models.CounterDelta{
		Upvotes:   undo.Upvotes + do.Upvotes,
		Downvotes: undo.Downvotes + do.Downvotes,
	}
}

// VoteService is the per-identity vote state machine.
type VoteService struct {
	identities *IdentityResolver
	limiter    *RateLimiter
	votes      *CacheVoteStore
	subjects   SubjectStore

	limit      int
	window     time.Duration
	maxRecords int
}

func NewVoteService(store cache.Store, subjects SubjectStore, identities *IdentityResolver, limiter *RateLimiter, cfg config.EngagementConfig) *VoteService {
	return &VoteService{
		identities: identities,
		limiter:    limiter,
		votes:      NewCacheVoteStore(store, cfg.VoteTTL),
		subjects:   subjects,
		limit:      cfg.VoteLimit,
		window:     cfg.VoteWindow,
		maxRecords: cfg.VoteCookieMaxRecord,
	}
}

func (s *VoteService) storeFor(v *Visitor) VoteStore {
	return NewLayeredVoteStore(s.votes, NewCookieVoteStore(v.Votes, s.maxRecords))
}

// State returns the visitor's current vote on subjectID.
func (s *VoteService) State(ctx context.Context, v *Visitor, subjectID string) (VoteState, error) {
	identity := s.identities.Resolve(v.Cookies, PurposeVote)
	return s.storeFor(v).Get(ctx, identity, subjectID)
}

// Apply runs one vote request. A rate-limited request returns the current tallies with
// RateLimited set and changes nothing.
func (s *VoteService) Apply(ctx context.Context, v *Visitor, subjectID string, requested VoteState) (*VoteResult, error) {
	if requested != VoteUp && requested != VoteDown && requested != VoteNone {
		return nil, ErrInvalidDirection
	}
	identity := s.identities.Resolve(v.Cookies, PurposeVote)

	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	store := s.storeFor(v)

	allowed, err := s.limiter.Allow(ctx, RateLimitKey("vote", identity), s.limit, s.window)
	if err != nil {
		slog.Warn("Vote rate limit skipped", "subject", subjectID, "error", err)
		allowed = true
	}
	if !allowed {
		current, err := store.Get(ctx, identity, subjectID)
		if err != nil {
			return nil, err
		}
		result := newVoteResult(subject, current)
		result.RateLimited = true
		return result, nil
	}

	current, err := store.Get(ctx, identity, subjectID)
	if err != nil {
		return nil, err
	}
	next, delta := Transition(current, requested)
	if err := store.Put(ctx, identity, subjectID, next); err != nil {
		return nil, err
	}

	updated, err := s.subjects.AddCounters(ctx, subjectID, delta)
	if err != nil {
		return nil, err
	}
	return newVoteResult(updated, next), nil
}

// Remove clears the visitor's vote on subjectID, if any.
func (s *VoteService) Remove(ctx context.Context, v *Visitor, subjectID string) (*VoteResult, error) {
	return s.Apply(ctx, v, subjectID, VoteNone)
}
