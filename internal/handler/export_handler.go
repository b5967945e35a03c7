package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/stundenplan/grundschule-api/internal/service"
	"github.com/stundenplan/grundschule-api/pkg/response"
)

// ExportHandler serves rendered timetable downloads.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler constructs an export handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// ClassWeek godoc
// @Summary Export the weekly grid of a class
// @Tags Exports
// @Produce json
// @Param id path string true "Class ID"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {object} response.Envelope
// @Router /exports/class/{id} [get]
func (h *ExportHandler) ClassWeek(c *gin.Context) {
	result, err := h.service.ClassWeek(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// TeacherWeek godoc
// @Summary Export the weekly grid of a teacher
// @Tags Exports
// @Produce json
// @Param id path string true "Teacher ID"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200 {object} response.Envelope
// @Router /exports/teacher/{id} [get]
func (h *ExportHandler) TeacherWeek(c *gin.Context) {
	result, err := h.service.TeacherWeek(c.Request.Context(), c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a rendered export via signed token
// @Tags Exports
// @Param token path string true "Signed download token"
// @Success 200
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	relPath, err := h.service.ParseToken(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Open(relPath)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", "attachment; filename="+filepath.Base(relPath))
	c.File(file.Name())
}
