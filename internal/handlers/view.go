package handlers

import (
	"net/http"
	"plugindir/internal/config"
	"plugindir/internal/middleware"
	"plugindir/internal/services"
	"time"

	"github.com/gin-gonic/gin"
)

type ViewHandler struct {
	views      *services.ViewService
	identities *services.IdentityResolver
	cookies    config.CookieConfig
}

func NewViewHandler(views *services.ViewService, identities *services.IdentityResolver, cookies config.CookieConfig) *ViewHandler {
	return &ViewHandler{views: views, identities: identities, cookies: cookies}
}

// Record counts a page view for the visitor.
func (h *ViewHandler) Record(c *gin.Context) {
	v := middleware.VisitorFrom(c, h.cookies)
	identity := h.identities.Resolve(v.Cookies, services.PurposeView)

	res, err := h.views.Record(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Stats returns the daily and weekly view counters; ?day=YYYY-MM-DD, default today (UTC).
func (h *ViewHandler) Stats(c *gin.Context) {
	day := time.Now().UTC()
	if raw := c.Query("day"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrTypeInvalidRequest, "day must be YYYY-MM-DD", err.Error())
			return
		}
		day = parsed
	}

	stats, err := h.views.Stats(c.Request.Context(), c.Param("id"), day)
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
