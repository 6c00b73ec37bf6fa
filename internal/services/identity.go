package services

import (
	"log/slog"
	"plugindir/internal/config"
	"time"

	"github.com/google/uuid"
)

// Purpose namespaces identity tokens so a view token can never be replayed as a vote token.
type Purpose string

const (
	PurposeView    Purpose = "view"
	PurposeVote    Purpose = "vote"
	PurposeComment Purpose = "comment"
)

// CookieName returns the cookie carrying the identity token for p.
func CookieName(p Purpose) string {
	return "pd_" + string(p) + "_id"
}

// IdentityResolver issues and reads the long-lived anonymous token for each purpose.
type IdentityResolver struct {
	ttls  map[Purpose]time.Duration
	newID func() string
}

func NewIdentityResolver(cfg config.CookieConfig) *IdentityResolver {
	return &IdentityResolver{
		ttls: map[Purpose]time.Duration{
			PurposeView:    cfg.ViewTTL,
			PurposeVote:    cfg.VoteTTL,
			PurposeComment: cfg.CommentTTL,
		},
		newID: uuid.NewString,
	}
}

// Resolve returns the visitor's token for purpose, minting and persisting a new one when the
// cookie is missing or malformed. A failed cookie write still yields a usable token for this
// request; the next request simply gets a fresh identity.
func (r *IdentityResolver) Resolve(jar CookieJar, purpose Purpose) string {
	name := CookieName(purpose)
	if v, ok := jar.Get(name); ok {
		if _, err := uuid.Parse(v); err == nil {
			return v
		}
	}

	id := r.newID()
	if err := jar.Set(name, id, r.ttls[purpose]); err != nil {
		slog.Debug("Identity cookie not persisted", "purpose", purpose, "error", err)
	}
	return id
}
