package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/jordanlanch/taxpipe/pkg/cache"
	"github.com/jordanlanch/taxpipe/pkg/domain"
	"github.com/jordanlanch/taxpipe/pkg/models"
	"github.com/jordanlanch/taxpipe/pkg/period"
	"github.com/jordanlanch/taxpipe/pkg/schedule"
	"github.com/jordanlanch/taxpipe/pkg/token"
)

// PipelineHandler exposes the pipeline to operators: the review list, the
// day's queues, manual build triggers, and token re-issue.
type PipelineHandler struct {
	builder   *schedule.Builder
	periods   *period.Builder
	reviews   *cache.ReviewCache
	schedules domain.ScheduleStore
	clients   domain.ClientStore
	tokens    *token.Service
	validate  *validator.Validate
}

// NewPipelineHandler creates a new pipeline handler
func NewPipelineHandler(
	builder *schedule.Builder,
	periods *period.Builder,
	reviews *cache.ReviewCache,
	schedules domain.ScheduleStore,
	clients domain.ClientStore,
	tokens *token.Service,
) *PipelineHandler {
	return &PipelineHandler{
		builder:   builder,
		periods:   periods,
		reviews:   reviews,
		schedules: schedules,
		clients:   clients,
		tokens:    tokens,
		validate:  validator.New(),
	}
}

// GetReviewList returns the clients awaiting human resolution, with their
// full audit trails.
func (h *PipelineHandler) GetReviewList(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	list, err := h.reviews.Get(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to load review list",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":   len(list),
		"clients": list,
	})
}

// GetSchedule returns the schedule for a date (YYYY-MM-DD).
func (h *PipelineHandler) GetSchedule(c echo.Context) error {
	date, err := time.ParseInLocation("2006-01-02", c.Param("date"), time.UTC)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid date, expected YYYY-MM-DD",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	sched, err := h.schedules.GetByDate(ctx, date)
	if err != nil {
		if domain.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "No schedule for that date",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to load schedule",
		})
	}

	return c.JSON(http.StatusOK, sched)
}

// BuildToday triggers a daily build outside the cron window. Safe to call more
// than once per day.
func (h *PipelineHandler) BuildToday(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Minute)
	defer cancel()

	result, err := h.builder.BuildDaily(ctx, time.Now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Daily build failed",
		})
	}

	return c.JSON(http.StatusOK, result)
}

// BuildPeriodRequest is the manual period-build payload.
type BuildPeriodRequest struct {
	Stage string `json:"stage" validate:"required"`
}

// BuildPeriod opens a new campaign period for a stage.
func (h *PipelineHandler) BuildPeriod(c echo.Context) error {
	var req BuildPeriodRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid request body",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	stage, err := models.ParseStage(req.Stage)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Minute)
	defer cancel()

	result, err := h.periods.BuildPeriod(ctx, stage, time.Now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Period build failed",
		})
	}

	return c.JSON(http.StatusOK, result)
}

// ValidateToken resolves a scheduling link. The booking front end calls it
// before showing the calendar; a re-issue supersedes every link sent earlier.
func (h *PipelineHandler) ValidateToken(c echo.Context) error {
	presented := c.Param("token")

	claims, err := h.tokens.Validate(presented)
	if err != nil {
		if domain.IsStaleToken(err) {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"error": "This scheduling link has expired, please request a new one",
			})
		}
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "Invalid scheduling link",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	client, err := h.clients.GetByCaseNumber(ctx, claims.CaseNumber)
	if err != nil {
		if domain.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "Client not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to load client",
		})
	}

	if client.Token != presented {
		return c.JSON(http.StatusGone, map[string]interface{}{
			"error": "This scheduling link has been replaced",
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"case_number": client.CaseNumber,
		"name":        client.Name,
		"domain":      client.Domain,
	})
}

// ReissueToken issues a fresh scheduling-link token for a client and moves it
// back to active so it can re-enter automation.
func (h *PipelineHandler) ReissueToken(c echo.Context) error {
	caseNumber := c.Param("caseNumber")

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	client, err := h.clients.GetByCaseNumber(ctx, caseNumber)
	if err != nil {
		if domain.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, map[string]interface{}{
				"error": "Client not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to load client",
		})
	}

	tok, expiresAt, err := h.tokens.Issue(client.CaseNumber, string(client.Domain))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to issue token",
		})
	}

	client.Token = tok
	client.TokenExpiresAt = &expiresAt
	if client.Status == models.StatusInReview {
		if err := client.SetStatus(models.StatusActive); err != nil {
			return c.JSON(http.StatusConflict, map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if err := h.clients.Upsert(ctx, client); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to save client",
		})
	}

	// The client may have just left the review list; drop the cached copy so
	// the next read rebuilds it. Best effort, the TTL covers a miss here.
	_ = h.reviews.Invalidate(ctx)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"case_number": client.CaseNumber,
		"expires_at":  expiresAt,
	})
}

// Register wires the handler's routes onto a group.
func (h *PipelineHandler) Register(g *echo.Group) {
	g.GET("/review", h.GetReviewList)
	g.GET("/schedule/:date", h.GetSchedule)
	g.GET("/scheduling/:token", h.ValidateToken)
	g.POST("/schedule/build", h.BuildToday)
	g.POST("/period/build", h.BuildPeriod)
	g.POST("/clients/:caseNumber/token", h.ReissueToken)
}
