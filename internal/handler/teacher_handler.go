package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/stundenplan/grundschule-api/internal/models"
	"github.com/stundenplan/grundschule-api/internal/service"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
	"github.com/stundenplan/grundschule-api/pkg/response"
)

// TeacherHandler wires teacher services to HTTP routes, including the nested
// availability and qualification resources.
type TeacherHandler struct {
	teachers       *service.TeacherService
	availability   *service.AvailabilityService
	qualifications *service.QualificationService
}

// NewTeacherHandler constructs a new TeacherHandler.
func NewTeacherHandler(teachers *service.TeacherService, availability *service.AvailabilityService, qualifications *service.QualificationService) *TeacherHandler {
	return &TeacherHandler{
		teachers:       teachers,
		availability:   availability,
		qualifications: qualifications,
	}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param search query string false "Search by name/email/abbreviation"
// @Param active query bool false "Filter by active status"
// @Param part_time query bool false "Filter by part-time status"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (last_name,email,abbreviation,created_at)"
// @Param order query string false "Sort order (asc/desc)"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	filter := models.TeacherFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	if active := parseBoolQuery(c, "active"); active != nil {
		filter.Active = active
	}
	if partTime := parseBoolQuery(c, "part_time"); partTime != nil {
		filter.IsPartTime = partTime
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	teachers, pagination, err := h.teachers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Get godoc
// @Summary Get teacher detail
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.teachers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Create godoc
// @Summary Create teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body service.CreateTeacherRequest true "Teacher payload"
// @Success 201 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req service.CreateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.teachers.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Update godoc
// @Summary Update teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.UpdateTeacherRequest true "Teacher payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	var req service.UpdateTeacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid teacher payload"))
		return
	}
	teacher, err := h.teachers.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Delete godoc
// @Summary Deactivate teacher
// @Tags Teachers
// @Param id path string true "Teacher ID"
// @Success 204
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Delete(c *gin.Context) {
	if err := h.teachers.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListAvailability godoc
// @Summary List teacher availability entries
// @Tags Availability
// @Param id path string true "Teacher ID"
// @Param weekday query int false "Filter by weekday (0=Monday)"
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *TeacherHandler) ListAvailability(c *gin.Context) {
	filter := models.AvailabilityFilter{}
	if raw := c.Query("weekday"); raw != "" {
		if weekday, err := strconv.Atoi(raw); err == nil {
			filter.Weekday = &weekday
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
		filter.PageSize = size
	}

	entries, pagination, err := h.availability.ListForTeacher(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// CreateAvailability godoc
// @Summary Create teacher availability entry
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.CreateAvailabilityRequest true "Availability payload"
// @Success 201 {object} response.Envelope
// @Router /teachers/{id}/availability [post]
func (h *TeacherHandler) CreateAvailability(c *gin.Context) {
	var req service.CreateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	entry, err := h.availability.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// UpdateAvailability godoc
// @Summary Update teacher availability entry
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param aid path string true "Availability ID"
// @Param payload body service.CreateAvailabilityRequest true "Availability payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/availability/{aid} [put]
func (h *TeacherHandler) UpdateAvailability(c *gin.Context) {
	var req service.CreateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	entry, err := h.availability.Update(c.Request.Context(), c.Param("aid"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// DeleteAvailability godoc
// @Summary Delete teacher availability entry
// @Tags Availability
// @Param id path string true "Teacher ID"
// @Param aid path string true "Availability ID"
// @Success 204
// @Router /teachers/{id}/availability/{aid} [delete]
func (h *TeacherHandler) DeleteAvailability(c *gin.Context) {
	if err := h.availability.Delete(c.Request.Context(), c.Param("aid")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// QualificationMatrix godoc
// @Summary Qualification overview grouped by teacher
// @Tags Qualifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers/matrix [get]
func (h *TeacherHandler) QualificationMatrix(c *gin.Context) {
	matrix, err := h.qualifications.Matrix(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matrix, nil)
}

// ListQualifications godoc
// @Summary List subjects a teacher is qualified for
// @Tags Qualifications
// @Param id path string true "Teacher ID"
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/subjects [get]
func (h *TeacherHandler) ListQualifications(c *gin.Context) {
	quals, err := h.qualifications.ListForTeacher(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quals, nil)
}

// CreateQualification godoc
// @Summary Link a teacher to a subject
// @Tags Qualifications
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body service.CreateQualificationRequest true "Qualification payload"
// @Success 201 {object} response.Envelope
// @Router /teachers/{id}/subjects [post]
func (h *TeacherHandler) CreateQualification(c *gin.Context) {
	var req service.CreateQualificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid qualification payload"))
		return
	}
	qual, err := h.qualifications.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, qual)
}

// UpdateQualification godoc
// @Summary Update a teacher-subject link
// @Tags Qualifications
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param qid path string true "Qualification ID"
// @Param payload body service.UpdateQualificationRequest true "Qualification payload"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/subjects/{qid} [put]
func (h *TeacherHandler) UpdateQualification(c *gin.Context) {
	var req service.UpdateQualificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid qualification payload"))
		return
	}
	qual, err := h.qualifications.Update(c.Request.Context(), c.Param("qid"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, qual, nil)
}

// DeleteQualification godoc
// @Summary Remove a teacher-subject link
// @Tags Qualifications
// @Param id path string true "Teacher ID"
// @Param qid path string true "Qualification ID"
// @Success 204
// @Router /teachers/{id}/subjects/{qid} [delete]
func (h *TeacherHandler) DeleteQualification(c *gin.Context) {
	if err := h.qualifications.Delete(c.Request.Context(), c.Param("qid")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func parseBoolQuery(c *gin.Context, name string) *bool {
	switch strings.ToLower(c.Query(name)) {
	case "true":
		val := true
		return &val
	case "false":
		val := false
		return &val
	}
	return nil
}
