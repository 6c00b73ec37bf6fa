package handlers

import (
	"net/http"
	"plugindir/internal/models"
	"plugindir/internal/services"

	"github.com/gin-gonic/gin"
)

type SubjectHandler struct {
	subjects services.SubjectStore
}

func NewSubjectHandler(subjects services.SubjectStore) *SubjectHandler {
	return &SubjectHandler{subjects: subjects}
}

type createSubjectRequest struct {
	ID    string `json:"id" binding:"required,max=64"`
	Kind  string `json:"kind" binding:"omitempty,oneof=plugin showcase"`
	Title string `json:"title" binding:"required,max=255"`
}

// Create registers a subject with zeroed counters.
func (h *SubjectHandler) Create(c *gin.Context) {
	var req createSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		renderBindError(c, err)
		return
	}
	if req.Kind == "" {
		req.Kind = "plugin"
	}

	subject := &models.Subject{ID: req.ID, Kind: req.Kind, Title: req.Title}
	if err := h.subjects.Create(c.Request.Context(), subject); err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subject)
}

// Get 返回条目的聚合计数和评论数
func (h *SubjectHandler) Get(c *gin.Context) {
	subject, err := h.subjects.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		RenderError(c, err)
		return
	}
	c.JSON(http.StatusOK, subject)
}
