package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stundenplan/grundschule-api/internal/middleware"
	"github.com/stundenplan/grundschule-api/internal/models"
	"github.com/stundenplan/grundschule-api/internal/service"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
	"github.com/stundenplan/grundschule-api/pkg/response"
)

type boardMetrics interface {
	ObserveBoardLookup(duration time.Duration)
}

// ScheduleHandler manages lesson placement and week view endpoints.
type ScheduleHandler struct {
	service *service.ScheduleService
	metrics boardMetrics
}

// NewScheduleHandler constructs a schedule handler.
func NewScheduleHandler(svc *service.ScheduleService, metrics boardMetrics) *ScheduleHandler {
	return &ScheduleHandler{service: svc, metrics: metrics}
}

// List godoc
// @Summary List schedules
// @Tags Schedules
// @Produce json
// @Param class_id query string false "Filter by class"
// @Param teacher_id query string false "Filter by teacher"
// @Param subject_id query string false "Filter by subject"
// @Param timeslot_id query string false "Filter by timeslot"
// @Param week_type query string false "Filter by week type (ALL/A/B)"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	filter := models.ScheduleFilter{
		ClassID:    c.Query("class_id"),
		TeacherID:  c.Query("teacher_id"),
		SubjectID:  c.Query("subject_id"),
		TimeSlotID: c.Query("timeslot_id"),
	}
	if raw := strings.ToUpper(c.Query("week_type")); raw != "" {
		weekType := models.WeekType(raw)
		if weekType.Valid() {
			filter.WeekType = &weekType
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	schedules, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Get godoc
// @Summary Get schedule detail
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Create godoc
// @Summary Place a lesson
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	schedule, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.Created(c, schedule)
}

// Update godoc
// @Summary Move or reassign a lesson
// @Tags Schedules
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	schedule, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// Delete godoc
// @Summary Remove a lesson
// @Tags Schedules
// @Param id path string true "Schedule ID"
// @Success 204
// @Router /schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Validate godoc
// @Summary Dry-run placement checks for a lesson
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/validate [post]
func (h *ScheduleHandler) Validate(c *gin.Context) {
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	conflicts, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"valid": len(conflicts) == 0, "conflicts": conflicts}, nil)
}

// Conflicts godoc
// @Summary Report all double bookings on the board
// @Tags Schedules
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schedules/conflicts [get]
func (h *ScheduleHandler) Conflicts(c *gin.Context) {
	conflicts, err := h.service.AllConflicts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, conflicts, nil)
}

// ClassWeek godoc
// @Summary Weekly board for a class
// @Tags Schedules
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/class/{id} [get]
func (h *ScheduleHandler) ClassWeek(c *gin.Context) {
	h.board(c, func() ([]models.ScheduleDetail, bool, error) {
		return h.service.ClassWeek(c.Request.Context(), c.Param("id"))
	})
}

// TeacherWeek godoc
// @Summary Weekly board for a teacher
// @Tags Schedules
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/teacher/{id} [get]
func (h *ScheduleHandler) TeacherWeek(c *gin.Context) {
	h.board(c, func() ([]models.ScheduleDetail, bool, error) {
		return h.service.TeacherWeek(c.Request.Context(), c.Param("id"))
	})
}

// RoomWeek godoc
// @Summary Weekly board for a room
// @Tags Schedules
// @Produce json
// @Param room path string true "Room name"
// @Success 200 {object} response.Envelope
// @Router /schedules/room/{room} [get]
func (h *ScheduleHandler) RoomWeek(c *gin.Context) {
	h.board(c, func() ([]models.ScheduleDetail, bool, error) {
		return h.service.RoomWeek(c.Request.Context(), c.Param("room"))
	})
}

// board runs one week view lookup, records its latency and reports whether the
// response came out of the board cache.
func (h *ScheduleHandler) board(c *gin.Context, lookup func() ([]models.ScheduleDetail, bool, error)) {
	start := time.Now()
	details, cacheHit, err := lookup()
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveBoardLookup(time.Since(start))
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, details, nil, middleware.ExtractMeta(c))
}

// SlotOccupancy godoc
// @Summary Lessons in one timeslot
// @Tags Schedules
// @Produce json
// @Param id path string true "TimeSlot ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/timeslot/{id} [get]
func (h *ScheduleHandler) SlotOccupancy(c *gin.Context) {
	schedules, err := h.service.SlotOccupancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}

// renderError maps conflict errors to a structured 409 payload.
func (h *ScheduleHandler) renderError(c *gin.Context, err error) {
	if conflictErr, ok := err.(*models.ScheduleConflictError); ok {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":      appErrors.ErrConflict.Code,
				"message":   conflictErr.Message,
				"conflicts": conflictErr.Errors,
			},
		})
		return
	}
	response.Error(c, err)
}
