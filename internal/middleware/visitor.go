package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"plugindir/internal/config"
	"plugindir/internal/services"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const VisitorKey = "visitor"

// votesSessionKey 会话中保存投票降级副本的键
const votesSessionKey = "votes"

var errHeadersWritten = errors.New("response already written, cookie dropped")

// GinCookieJar adapts gin's cookie helpers to services.CookieJar.
// Cookies set during the request are visible to later Get calls in the same request.
type GinCookieJar struct {
	c      *gin.Context
	cfg    config.CookieConfig
	values map[string]string
}

func NewGinCookieJar(c *gin.Context, cfg config.CookieConfig) *GinCookieJar {
	return &GinCookieJar{c: c, cfg: cfg, values: map[string]string{}}
}

func (j *GinCookieJar) Get(name string) (string, bool) {
	if v, ok := j.values[name]; ok {
		return v, true
	}
	v, err := j.c.Cookie(name)
	if err != nil || v == "" {
		return "", false
	}
	return v, true
}

func (j *GinCookieJar) Set(name, value string, maxAge time.Duration) error {
	if j.c.Writer.Written() {
		return errHeadersWritten
	}
	j.c.SetSameSite(http.SameSiteLaxMode)
	j.c.SetCookie(name, value, int(maxAge.Seconds()), "/", j.cfg.Domain, j.cfg.Secure, true)
	j.values[name] = value
	return nil
}

// SessionVoteCookie stores the subject -> vote map in the signed session cookie.
type SessionVoteCookie struct {
	session sessions.Session
	cfg     config.CookieConfig
}

func NewSessionVoteCookie(session sessions.Session, cfg config.CookieConfig) *SessionVoteCookie {
	return &SessionVoteCookie{session: session, cfg: cfg}
}

func (s *SessionVoteCookie) Load() (map[string]services.VoteState, error) {
	raw, ok := s.session.Get(votesSessionKey).(string)
	if !ok || raw == "" {
		return map[string]services.VoteState{}, nil
	}
	var votes map[string]services.VoteState
	if err := json.Unmarshal([]byte(raw), &votes); err != nil {
		return nil, err
	}
	return votes, nil
}

func (s *SessionVoteCookie) Store(votes map[string]services.VoteState) error {
	raw, err := json.Marshal(votes)
	if err != nil {
		return err
	}
	if len(raw) > services.VoteCookieMaxBytes {
		return fmt.Errorf("vote map is %d bytes, limit %d", len(raw), services.VoteCookieMaxBytes)
	}
	s.session.Options(sessions.Options{
		Path:     "/",
		Domain:   s.cfg.Domain,
		MaxAge:   int(s.cfg.VoteTTL.Seconds()),
		Secure:   s.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.session.Set(votesSessionKey, string(raw))
	return s.session.Save()
}

// LoadVisitor attaches the anonymous visitor's cookie surfaces to the context.
// It must run after sessions.Sessions.
func LoadVisitor(cfg config.CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(VisitorKey, &services.Visitor{
			Cookies: NewGinCookieJar(c, cfg),
			Votes:   NewSessionVoteCookie(sessions.Default(c), cfg),
		})
		c.Next()
	}
}

// VisitorFrom returns the visitor set by LoadVisitor, or a fresh one bound to c.
func VisitorFrom(c *gin.Context, cfg config.CookieConfig) *services.Visitor {
	if v, ok := c.Get(VisitorKey); ok {
		return v.(*services.Visitor)
	}
	return &services.Visitor{
		Cookies: NewGinCookieJar(c, cfg),
		Votes:   NewSessionVoteCookie(sessions.Default(c), cfg),
	}
}
