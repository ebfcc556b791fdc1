package meetups

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meetapp/backend/internal/auth"
	"github.com/meetapp/backend/internal/enrollments"
	"github.com/meetapp/backend/internal/models"
	"github.com/meetapp/backend/pkg/response"
)

const dateLayout = "2006-01-02"

// Store is the meetup persistence the handler needs.
type Store interface {
	Finder
	Create(ctx context.Context, m *models.Meetup) error
	ListByOrganizerOnDate(ctx context.Context, organizerID uuid.UUID, day time.Time, page int) ([]models.MeetupWithOrganizer, error)
	Update(ctx context.Context, m *models.Meetup) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Request is the body for POST /meetups and PUT /meetups/:id.
type Request struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description" binding:"required"`
	Location    string    `json:"location" binding:"required"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	Banner      string    `json:"banner"`
}

// Handler handles meetup HTTP endpoints.
type Handler struct {
	repo   Store
	window enrollments.TimeWindow
	logger *zap.Logger
}

// NewHandler creates a meetup handler. clock may be nil to use time.Now.
func NewHandler(repo Store, clock enrollments.Clock, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, window: enrollments.NewTimeWindow(clock), logger: logger}
}

// Index handles GET /meetups?date=YYYY-MM-DD&page=N. Lists the caller's meetups on that day.
func (h *Handler) Index(c *gin.Context) {
	userID, ok := auth.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	day := h.window.Now().UTC()
	if s := c.Query("date"); s != "" {
		d, err := time.Parse(dateLayout, s)
		if err != nil {
			response.BadRequest(c, "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	page := 1
	if s := c.Query("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			response.BadRequest(c, "page must be a positive integer")
			return
		}
		page = n
	}

	list, err := h.repo.ListByOrganizerOnDate(c.Request.Context(), userID, day, page)
	if err != nil {
		h.logger.Error("list meetups failed", zap.Error(err))
		response.Internal(c, "failed to load meetups")
		return
	}
	response.OK(c, list)
}

// Store handles POST /meetups.
func (h *Handler) Store(c *gin.Context) {
	userID, ok := auth.UserIDFrom(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if h.window.IsPast(req.StartsAt) {
		response.BadRequest(c, "past dates are not permitted")
		return
	}

	m := &models.Meetup{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		Banner:      req.Banner,
		OrganizerID: userID,
	}
	if err := h.repo.Create(c.Request.Context(), m); err != nil {
		h.logger.Error("create meetup failed", zap.Error(err))
		response.Internal(c, "failed to create meetup")
		return
	}
	response.Created(c, m)
}

// Update handles PUT /meetups/:id. Call after RequireOrganizer.
func (h *Handler) Update(c *gin.Context) {
	m, ok := meetupFrom(c)
	if !ok {
		response.NotFound(c, "meetup not found")
		return
	}
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if h.window.IsPast(req.StartsAt) {
		response.BadRequest(c, "past dates are not permitted")
		return
	}

	m.Title = req.Title
	m.Description = req.Description
	m.Location = req.Location
	m.StartsAt = req.StartsAt
	m.Banner = req.Banner
	if err := h.repo.Update(c.Request.Context(), m); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "meetup not found")
		case errors.Is(err, ErrScheduleConflict):
			response.Conflict(c, ErrScheduleConflict.Error())
		default:
			h.logger.Error("update meetup failed", zap.Error(err), zap.String("meetup_id", m.ID.String()))
			response.Internal(c, "failed to update meetup")
		}
		return
	}
	response.OK(c, m)
}

// Delete handles DELETE /meetups/:id. Call after RequireOrganizer. Only upcoming meetups can be cancelled.
func (h *Handler) Delete(c *gin.Context) {
	m, ok := meetupFrom(c)
	if !ok {
		response.NotFound(c, "meetup not found")
		return
	}
	if h.window.IsPast(m.StartsAt) {
		response.BadRequest(c, "only meetups that have not happened can be cancelled")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), m.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "meetup not found")
			return
		}
		h.logger.Error("delete meetup failed", zap.Error(err), zap.String("meetup_id", m.ID.String()))
		response.Internal(c, "failed to delete meetup")
		return
	}
	h.logger.Info("meetup cancelled", zap.String("meetup_id", m.ID.String()))
	response.NoContent(c)
}
