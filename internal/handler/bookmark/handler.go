package bookmark

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/surveillance-api/internal/handler"
	"github.com/jwalitptl/surveillance-api/internal/middleware"
	"github.com/jwalitptl/surveillance-api/internal/model"
	"github.com/jwalitptl/surveillance-api/internal/repository"
	"github.com/jwalitptl/surveillance-api/internal/service/bookmark"
	"github.com/jwalitptl/surveillance-api/internal/service/export"
	apperrors "github.com/jwalitptl/surveillance-api/pkg/errors"
)

type Handler struct {
	sessions *bookmark.Sessions
}

func NewHandler(sessions *bookmark.Sessions) *Handler {
	return &Handler{sessions: sessions}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/reports/:reportType/filters")
	{
		reports.GET("", h.ListFilters)
		reports.POST("", h.SaveFilter)
		reports.GET("/export", h.ExportFilters)
	}

	filters := r.Group("/filters")
	{
		filters.DELETE("", h.ClearFilters)
		filters.GET("/:id", h.GetFilter)
		filters.GET("/:id/parameters", h.LoadFilter)
		filters.DELETE("/:id", h.RemoveFilter)
	}
}

func (h *Handler) store(c *gin.Context) *bookmark.Store {
	return h.sessions.Get(middleware.GetSessionID(c))
}

// ListFilters loads the report type's saved filters into the session view.
func (h *Handler) ListFilters(c *gin.Context) {
	sets, err := h.store(c).Initialize(c.Request.Context(), c.Param("reportType"))
	if err != nil {
		c.Error(toAppError(err))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(sets))
}

func (h *Handler) SaveFilter(c *gin.Context) {
	var req model.CreateFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		c.Error(apperrors.BadRequest("invalid request body", err))
		return
	}

	set, err := h.store(c).SaveFilter(c.Request.Context(), c.Param("reportType"), req.Name, req.Filters)
	if err != nil {
		c.Error(toAppError(err))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(set))
}

// LoadFilter answers from the session view only.
func (h *Handler) LoadFilter(c *gin.Context) {
	id := c.Param("id")
	c.JSON(http.StatusOK, handler.NewSuccessResponse(model.FilterParameters{
		ID:      id,
		Filters: h.store(c).LoadFilter(id),
	}))
}

// GetFilter looks the id up in durable storage.
func (h *Handler) GetFilter(c *gin.Context) {
	set, found, err := h.store(c).FindFilter(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(toAppError(err))
		return
	}
	if !found {
		c.Error(apperrors.NotFound("saved filter", nil))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(set))
}

func (h *Handler) RemoveFilter(c *gin.Context) {
	if err := h.store(c).RemoveFilter(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(toAppError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "saved filter removed"})
}

func (h *Handler) ClearFilters(c *gin.Context) {
	if err := h.store(c).Clear(c.Request.Context()); err != nil {
		c.Error(toAppError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "saved filters cleared"})
}

// ExportFilters downloads the report type's saved filters as a workbook.
func (h *Handler) ExportFilters(c *gin.Context) {
	reportType := c.Param("reportType")

	sets, err := h.store(c).Initialize(c.Request.Context(), reportType)
	if err != nil {
		c.Error(toAppError(err))
		return
	}

	buf, err := export.SavedFiltersWorkbook(reportType, sets)
	if err != nil {
		c.Error(apperrors.Internal(err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(reportType)+`"`)
	c.Data(http.StatusOK, export.ContentTypeXLSX, buf.Bytes())
}

func toAppError(err error) error {
	switch {
	case errors.Is(err, bookmark.ErrReportTypeRequired):
		return apperrors.BadRequest(err.Error(), err)
	case errors.Is(err, bookmark.ErrCorruptCollection):
		return apperrors.Conflict(err.Error(), err)
	case errors.Is(err, repository.ErrBackendUnavailable):
		return apperrors.Unavailable("storage backend unavailable", err)
	default:
		return apperrors.Internal(err)
	}
}
