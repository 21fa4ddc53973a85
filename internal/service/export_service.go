package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/noah-isme/hms-api/internal/dto"
	"github.com/noah-isme/hms-api/internal/models"
	"github.com/noah-isme/hms-api/internal/repository"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
)

// ErrUnsupportedExportFormat indicates a format other than csv or xlsx.
var ErrUnsupportedExportFormat = errors.New("unsupported export format")

var (
	userExportHeaders  = []string{"Phone", "Full name", "Role", "Group", "Level", "Active", "Joined"}
	gradeExportHeaders = []string{
		"Grade ID", "Submission ID", "Homework", "Student", "Submitted at",
		"AI total", "Teacher total", "Delta", "Band", "State",
	}
)

// ExportFile is a rendered export ready to be streamed.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportService renders user and grade exports.
type ExportService interface {
	Users(ctx context.Context, filter repository.UserFilter) (ExportFile, error)
	GroupGrades(ctx context.Context, actor ActivityActor, groupID uint, format string) (ExportFile, error)
}

type exportService struct {
	users  repository.UserRepository
	grades repository.GradeRepository
	logger zerolog.Logger
	now    func() time.Time
}

// NewExportService constructs the export service.
func NewExportService(users repository.UserRepository, grades repository.GradeRepository, logger zerolog.Logger) ExportService {
	return &exportService{
		users:  users,
		grades: grades,
		logger: logger.With().Str("component", "export_service").Logger(),
		now:    time.Now,
	}
}

func (s *exportService) Users(ctx context.Context, filter repository.UserFilter) (ExportFile, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return ExportFile{}, err
	}

	rows := make([][]string, 0, len(users))
	for _, user := range users {
		group := ""
		if user.Group != nil {
			group = user.Group.Name
		}
		rows = append(rows, []string{
			user.Phone,
			user.FullName,
			string(user.Role),
			group,
			strconv.FormatUint(uint64(user.Level), 10),
			strconv.FormatBool(user.IsActive),
			user.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	data, err := writeCSV(userExportHeaders, rows)
	if err != nil {
		return ExportFile{}, err
	}

	s.logger.Info().Int("rows", len(rows)).Msg("users exported")
	return ExportFile{
		Name:        fmt.Sprintf("users-%s.csv", s.now().UTC().Format("20060102")),
		ContentType: "text/csv",
		Data:        data,
	}, nil
}

func (s *exportService) GroupGrades(ctx context.Context, actor ActivityActor, groupID uint, format string) (ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatXLSX {
		return ExportFile{}, fmt.Errorf("%w: %s", ErrUnsupportedExportFormat, format)
	}

	group, err := s.users.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ExportFile{}, ErrGroupNotFound
		}
		return ExportFile{}, err
	}
	if actor.Role != models.RoleAdmin && (group.TeacherID == nil || *group.TeacherID != actor.ID) {
		return ExportFile{}, ErrLeaderboardForbidden
	}

	records, err := s.grades.ListRecords(ctx, repository.GradeRecordFilter{GroupID: &groupID})
	if err != nil {
		return ExportFile{}, err
	}

	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, gradeExportRow(record))
	}

	base := fmt.Sprintf("grades-group-%d-%s", groupID, s.now().UTC().Format("20060102"))
	var file ExportFile
	switch format {
	case ExportFormatXLSX:
		data, err := writeXLSX("Grades", gradeExportHeaders, rows)
		if err != nil {
			return ExportFile{}, err
		}
		file = ExportFile{
			Name:        base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        data,
		}
	default:
		data, err := writeCSV(gradeExportHeaders, rows)
		if err != nil {
			return ExportFile{}, err
		}
		file = ExportFile{Name: base + ".csv", ContentType: "text/csv", Data: data}
	}

	s.logger.Info().Uint("group_id", groupID).Str("format", format).Int("rows", len(rows)).Msg("grades exported")
	return file, nil
}

func gradeExportRow(record repository.GradeRecord) []string {
	divergence := record.Grade.Divergence()
	return []string{
		strconv.FormatUint(uint64(record.Grade.ID), 10),
		strconv.FormatUint(uint64(record.SubmissionID), 10),
		record.Homework,
		record.StudentName,
		record.SubmittedAt.UTC().Format(time.RFC3339),
		optionalCell(dto.FormatScore(record.Grade.AITotal)),
		optionalCell(dto.FormatScore(record.Grade.TeacherTotal)),
		optionalCell(dto.FormatScore(divergence.Delta)),
		string(divergence.Band),
		string(record.Grade.State()),
	}
}

func optionalCell(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write CSV rows: %w", err)
	}

	return buf.Bytes(), nil
}

func writeXLSX(sheetName string, headers []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	if err := writeSheetRow(f, sheetName, 1, headers); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := writeSheetRow(f, sheetName, i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheetRow(f *excelize.File, sheet string, rowNumber int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNumber)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, value := range values {
		row[i] = value
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("failed to write Excel row %d: %w", rowNumber, err)
	}
	return nil
}
