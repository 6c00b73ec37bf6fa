package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"plugindir/internal/cache"
	"sort"
	"time"
)

// VoteCookieMaxBytes caps the JSON-encoded vote map. The signed session cookie roughly
// doubles it through two base64 passes, and browsers drop cookies over 4096 bytes.
const VoteCookieMaxBytes = 1800

// VoteState is one identity's vote on one subject. Absence of a record means VoteNone.
type VoteState string

const (
	VoteNone VoteState = "none"
	VoteUp   VoteState = "up"
	VoteDown VoteState = "down"
)

// ParseVoteState maps unknown values to VoteNone.
func ParseVoteState(s string) VoteState {
	switch VoteState(s) {
	case VoteUp:
		return VoteUp
	case VoteDown:
		return VoteDown
	default:
		return VoteNone
	}
}

// VoteStore persists per-(identity, subject) vote state.
type VoteStore interface {
	Get(ctx context.Context, identity, subjectID string) (VoteState, error)
	Put(ctx context.Context, identity, subjectID string, state VoteState) error
}

// CacheVoteStore keeps vote state in the cache tier, the primary backend.
type CacheVoteStore struct {
	cache cache.Store
	ttl   time.Duration
}

func NewCacheVoteStore(store cache.Store, ttl time.Duration) *CacheVoteStore {
	return &CacheVoteStore{cache: store, ttl: ttl}
}

func voteKey(identity, subjectID string) string {
	return cache.Key("vote", identity, subjectID)
}

func (s *CacheVoteStore) Get(ctx context.Context, identity, subjectID string) (VoteState, error) {
	v, ok, err := s.cache.Get(ctx, voteKey(identity, subjectID))
	if err != nil {
		return VoteNone, err
	}
	if !ok {
		return VoteNone, nil
	}
	return ParseVoteState(v), nil
}

func (s *CacheVoteStore) Put(ctx context.Context, identity, subjectID string, state VoteState) error {
	key := voteKey(identity, subjectID)
	if state == VoteNone {
		return s.cache.Del(ctx, key)
	}
	return s.cache.Set(ctx, key, string(state), s.ttl)
}

// CookieVoteStore keeps vote state in the visitor's cookie. The cookie already belongs to
// one browser, so identity is not part of the key.
type CookieVoteStore struct {
	cookie     VoteCookie
	maxRecords int
}

func NewCookieVoteStore(cookie VoteCookie, maxRecords int) *CookieVoteStore {
	return &CookieVoteStore{cookie: cookie, maxRecords: maxRecords}
}

func (s *CookieVoteStore) load() map[string]VoteState {
	votes, err := s.cookie.Load()
	if err != nil || votes == nil {
		return map[string]VoteState{}
	}
	return votes
}

func (s *CookieVoteStore) Get(_ context.Context, _, subjectID string) (VoteState, error) {
	return ParseVoteState(string(s.load()[subjectID])), nil
}

func (s *CookieVoteStore) Put(_ context.Context, _, subjectID string, state VoteState) error {
	votes := s.load()
	if state == VoteNone {
		delete(votes, subjectID)
	} else {
		votes[subjectID] = state
		s.trim(votes, subjectID)
	}
	return s.cookie.Store(votes)
}

// trim keeps the map under maxRecords entries and VoteCookieMaxBytes encoded, evicting the
// lexicographically smallest subjects other than keep.
func (s *CookieVoteStore) trim(votes map[string]VoteState, keep string) {
	ids := make([]string, 0, len(votes))
	for id := range votes {
		if id != keep {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	if s.maxRecords > 0 && len(votes) > s.maxRecords {
		n := len(votes) - s.maxRecords
		for _, id := range ids[:n] {
			delete(votes, id)
		}
		ids = ids[n:]
	}
	for len(ids) > 0 && EncodedVotesSize(votes) > VoteCookieMaxBytes {
		delete(votes, ids[0])
		ids = ids[1:]
	}
}

// EncodedVotesSize is the length of votes as stored in the cookie.
func EncodedVotesSize(votes map[string]VoteState) int {
	raw, err := json.Marshal(votes)
	if err != nil {
		return 0
	}
	return len(raw)
}

// LayeredVoteStore reads from the cache and falls back to the cookie only while the cache is
// unreachable. Every write is mirrored into the cookie so the fallback stays current.
type LayeredVoteStore struct {
	primary  VoteStore
	fallback VoteStore
}

func NewLayeredVoteStore(primary, fallback VoteStore) *LayeredVoteStore {
	return &LayeredVoteStore{primary: primary, fallback: fallback}
}

func (s *LayeredVoteStore) Get(ctx context.Context, identity, subjectID string) (VoteState, error) {
	state, err := s.primary.Get(ctx, identity, subjectID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, cache.ErrUnavailable) {
		return VoteNone, err
	}
	slog.Warn("Vote cache unavailable, reading cookie fallback", "subject", subjectID, "error", err)
	return s.fallback.Get(ctx, identity, subjectID)
}

func (s *LayeredVoteStore) Put(ctx context.Context, identity, subjectID string, state VoteState) error {
	if err := s.primary.Put(ctx, identity, subjectID, state); err != nil {
		if !errors.Is(err, cache.ErrUnavailable) {
			return err
		}
		slog.Warn("Vote cache unavailable, state kept in cookie only", "subject", subjectID, "error", err)
	}
	if err := s.fallback.Put(ctx, identity, subjectID, state); err != nil {
		slog.Warn("Vote cookie not written", "subject", subjectID, "error", err)
	}
	return nil
}
