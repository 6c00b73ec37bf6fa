package handlers

import (
	"net/http"
	"plugindir/internal/config"
	"plugindir/internal/middleware"
	"plugindir/internal/services"

	"github.com/gin-gonic/gin"
)

type CommentHandler struct {
	comments *services.CommentService
	cookies  config.CookieConfig
}

func NewCommentHandler(comments *services.CommentService, cookies config.CookieConfig) *CommentHandler {
	return &CommentHandler{comments: comments, cookies: cookies}
}

// website is the honeypot: hidden from humans, filled in by form bots.
type commentRequest struct {
	Author  string `json:"author" form:"author"`
	Text    string `json:"text" form:"text"`
	Website string `json:"website" form:"website"`
}

// Create submits a comment. Rejections are 422 with the failing rule and its message.
func (h *CommentHandler) Create(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBind(&req); err != nil {
		renderBindError(c, err)
		return
	}

	v := middleware.VisitorFrom(c, h.cookies)
	res, err := h.comments.Submit(c.Request.Context(), v, services.CommentInput{
		SubjectID: c.Param("id"),
		Author:    req.Author,
		Text:      req.Text,
		Honeypot:  req.Website,
	})
	if err != nil {
		RenderError(c, err)
		return
	}

	if !res.Accepted {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"accepted": false,
			"rule":     res.Rejection.Rule,
			"message":  res.Rejection.Message,
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accepted": true, "comment": res.Comment})
}

// List 按时间正序返回评论 (含渲染后的 HTML)
func (h *CommentHandler) List(c *gin.Context) {
	comments, err := h.comments.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}
