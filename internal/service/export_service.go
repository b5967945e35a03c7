package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stundenplan/grundschule-api/internal/models"
	appErrors "github.com/stundenplan/grundschule-api/pkg/errors"
	"github.com/stundenplan/grundschule-api/pkg/export"
	"github.com/stundenplan/grundschule-api/pkg/storage"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

var weekdayNames = []string{"Montag", "Dienstag", "Mittwoch", "Donnerstag", "Freitag"}

type exportScheduleReader interface {
	ListDetailsByClass(ctx context.Context, classID string) ([]models.ScheduleDetail, error)
	ListDetailsByTeacher(ctx context.Context, teacherID string) ([]models.ScheduleDetail, error)
}

type exportSlotReader interface {
	List(ctx context.Context, filter models.TimeSlotFilter) ([]models.TimeSlot, int, error)
}

type exportClassLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type exportTeacherLookup interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportOptions tunes export behaviour.
type ExportOptions struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures metadata of a rendered timetable file.
type ExportResult struct {
	RelativePath string    `json:"relative_path"`
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	Format       string    `json:"format"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ExportService renders weekly timetable grids into downloadable CSV or PDF
// files behind signed URLs.
type ExportService struct {
	schedules exportScheduleReader
	slots     exportSlotReader
	classes   exportClassLookup
	teachers  exportTeacherLookup
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.DownloadSigner
	logger    *zap.Logger
	opts      ExportOptions
}

// NewExportService constructs an ExportService.
func NewExportService(schedules exportScheduleReader, slots exportSlotReader, classes exportClassLookup, teachers exportTeacherLookup, fileStore fileStorage, signer *storage.DownloadSigner, opts ExportOptions, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		schedules: schedules,
		slots:     slots,
		classes:   classes,
		teachers:  teachers,
		storage:   fileStore,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		signer:    signer,
		logger:    logger,
		opts:      opts,
	}
}

// ClassWeek renders the weekly grid for a class.
func (s *ExportService) ClassWeek(ctx context.Context, classID, format string) (*ExportResult, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	details, err := s.schedules.ListDetailsByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class week view")
	}

	dataset, err := s.buildGrid(ctx, details, func(d models.ScheduleDetail) string {
		return fmt.Sprintf("%s (%s)", d.SubjectCode, d.TeacherName)
	})
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Stundenplan Klasse %s", class.Name)
	return s.render(class.Name, title, format, dataset)
}

// TeacherWeek renders the weekly grid for a teacher.
func (s *ExportService) TeacherWeek(ctx context.Context, teacherID, format string) (*ExportResult, error) {
	teacher, err := s.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}

	details, err := s.schedules.ListDetailsByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher week view")
	}

	dataset, err := s.buildGrid(ctx, details, func(d models.ScheduleDetail) string {
		return fmt.Sprintf("%s (%s)", d.SubjectCode, d.ClassName)
	})
	if err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Stundenplan %s", teacher.FullName())
	return s.render(teacher.Abbreviation, title, format, dataset)
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string) (relPath string, err error) {
	_, relPath, _, err = s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return relPath, nil
}

// Open returns a handle to a stored export file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes export files older than the configured TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.opts.ResultTTL)
}

// buildGrid arranges lessons into a period-by-weekday table. Break slots
// render as a single labeled row.
func (s *ExportService) buildGrid(ctx context.Context, details []models.ScheduleDetail, cell func(models.ScheduleDetail) string) (export.Dataset, error) {
	slots, _, err := s.slots.List(ctx, models.TimeSlotFilter{PageSize: 100})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeslots")
	}

	type periodInfo struct {
		start   string
		end     string
		isBreak bool
	}
	periods := make(map[int]periodInfo)
	var order []int
	for _, slot := range slots {
		if _, seen := periods[slot.Period]; !seen {
			periods[slot.Period] = periodInfo{start: slot.StartTime, end: slot.EndTime, isBreak: slot.IsBreak}
			order = append(order, slot.Period)
		}
	}
	sort.Ints(order)

	lessons := make(map[int]map[int]string)
	for _, d := range details {
		if lessons[d.Period] == nil {
			lessons[d.Period] = make(map[int]string)
		}
		text := cell(d)
		if d.WeekType != models.WeekAll {
			text = fmt.Sprintf("%s [%s]", text, d.WeekType)
		}
		if existing := lessons[d.Period][d.Day]; existing != "" {
			text = existing + " / " + text
		}
		lessons[d.Period][d.Day] = text
	}

	headers := append([]string{"Stunde", "Zeit"}, weekdayNames...)
	rows := make([]map[string]string, 0, len(order))
	for _, period := range order {
		info := periods[period]
		row := map[string]string{
			"Stunde": fmt.Sprintf("%d", period),
			"Zeit":   fmt.Sprintf("%s-%s", info.start, info.end),
		}
		for day := models.MinDay; day <= models.MaxDay; day++ {
			name := weekdayNames[day-1]
			if info.isBreak {
				row[name] = "Pause"
				continue
			}
			row[name] = lessons[period][day]
		}
		rows = append(rows, row)
	}

	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) render(namePart, title, format string, dataset export.Dataset) (*ExportResult, error) {
	var payload []byte
	var err error
	switch strings.ToLower(format) {
	case FormatCSV, "":
		format = FormatCSV
		payload, err = s.csv.Render(dataset)
	case FormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := fmt.Sprintf("timetable_%s_%s.%s", sanitizeFilename(namePart), time.Now().UTC().Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(filename, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
	}

	prefix := strings.TrimRight(s.opts.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
