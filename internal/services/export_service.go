package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/utils"
	"github.com/xuri/excelize/v2"
)

const questionsSheet = "Questions"

var exportHeaders = []string{"#", "Question ID", "Type", "Text", "Required", "Options", "Min Rating", "Max Rating"}

// ExportService renders an editor session's questions as a spreadsheet.
type ExportService interface {
	ExportQuestions(ctx context.Context, p models.Principal, sessionID string) (*QuestionExport, error)
}

type QuestionExport struct {
	Filename string
	Content  []byte
}

const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type exportService struct {
	editors   EditorService
	svcLogger *ServiceLogger
}

func NewExportService(editors EditorService, logger utils.Logger) ExportService {
	return &exportService{
		editors:   editors,
		svcLogger: NewServiceLogger(logger.Slog(), LogConfig{Service: "survey-console", Component: "export"}),
	}
}

// ExportQuestions writes the current, possibly unsaved, question list in display order.
func (s *exportService) ExportQuestions(ctx context.Context, p models.Principal, sessionID string) (export *QuestionExport, err error) {
	op := s.svcLogger.WithOperation(ctx, "export_questions", p.UserID)
	defer func() { op.LogResult(sessionID, "editor_session", err) }()

	snap, err := s.editors.Snapshot(ctx, p, sessionID)
	if err != nil {
		return nil, err
	}

	content, err := renderQuestions(snap.Questions)
	if err != nil {
		return nil, err
	}

	return &QuestionExport{
		Filename: exportFilename(snap.TemplateName, snap.TemplateID),
		Content:  content,
	}, nil
}

func renderQuestions(questions []models.Question) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(questionsSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for i, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(questionsSheet, cell, header)
	}

	for rowIndex, q := range questions {
		row := questionRow(rowIndex+1, q)
		for colIndex, value := range row {
			if value == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			f.SetCellValue(questionsSheet, cell, value)
		}
	}

	if err := f.SetColWidth(questionsSheet, "D", "D", 60); err != nil {
		return nil, fmt.Errorf("failed to size text column: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

// questionRow leaves type-specific columns blank unless the type uses them.
func questionRow(position int, q models.Question) []interface{} {
	row := []interface{}{position, q.ID, q.Type.Label(), q.Text, yesNo(q.Required), "", "", ""}
	switch q.Type {
	case models.MultipleChoice:
		row[5] = strings.Join(q.Options, "\n")
	case models.Rating:
		row[6] = q.MinRating
		row[7] = q.MaxRating
	}
	return row
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func exportFilename(templateName, templateID string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, strings.TrimSpace(templateName))
	if base == "" {
		base = templateID
	}
	return base + "_questions.xlsx"
}
