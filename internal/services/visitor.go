package services

import (
	"context"
	"plugindir/internal/models"
	"time"
)

// CookieJar is the HTTP cookie surface of the current request.
// Get must observe values Set earlier in the same request.
type CookieJar interface {
	Get(name string) (string, bool)
	Set(name, value string, maxAge time.Duration) error
}

// VoteCookie persists a browser's subject -> vote map at the HTTP boundary.
// It is the degraded copy of vote state used while the cache is unreachable.
type VoteCookie interface {
	Load() (map[string]VoteState, error)
	Store(votes map[string]VoteState) error
}

// Visitor carries the request-scoped cookie surfaces of one anonymous browser.
type Visitor struct {
	Cookies CookieJar
	Votes   VoteCookie
}

// SubjectStore is the durable document store holding aggregates and comments.
type SubjectStore interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
	Create(ctx context.Context, subject *models.Subject) error
	AddCounters(ctx context.Context, id string, delta models.CounterDelta) (*models.Subject, error)
	AppendComment(ctx context.Context, comment *models.Comment) error
	ListComments(ctx context.Context, subjectID string, limit int) ([]models.Comment, error)
}
