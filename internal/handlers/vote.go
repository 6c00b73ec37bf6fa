package handlers

import (
	"net/http"
	"plugindir/internal/config"
	"plugindir/internal/middleware"
	"plugindir/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	votes   *services.VoteService
	cookies config.CookieConfig
}

func NewVoteHandler(votes *services.VoteService, cookies config.CookieConfig) *VoteHandler {
	return &VoteHandler{votes: votes, cookies: cookies}
}

type voteRequest struct {
	Direction string `json:"direction" form:"direction" binding:"required,oneof=up down"`
}

// State returns the visitor's current vote.
func (h *VoteHandler) State(c *gin.Context) {
	v := middleware.VisitorFrom(c, h.cookies)
	state, err := h.votes.State(c.Request.Context(), v, c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// Vote applies up or down. Repeating the current vote removes it.
func (h *VoteHandler) Vote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBind(&req); err != nil {
		renderBindError(c, err)
		return
	}
	h.apply(c, services.VoteState(req.Direction))
}

// Remove clears the visitor's vote.
func (h *VoteHandler) Remove(c *gin.Context) {
	h.apply(c, services.VoteNone)
}

func (h *VoteHandler) apply(c *gin.Context, dir services.VoteState) {
	v := middleware.VisitorFrom(c, h.cookies)
	res, err := h.votes.Apply(c.Request.Context(), v, c.Param("id"), dir)
	if err != nil {
		RenderError(c, err)
		return
	}
	if res.RateLimited {
		c.JSON(http.StatusTooManyRequests, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
