package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"
)

const usersSheet = "Users"

var userExportHeader = []interface{}{
	"ID", "Name", "Email", "Registration Number", "Role", "Enabled", "Course", "Disciplines", "Pending Completion",
}

type exportService struct {
	listing UserListingService
	logger  *slog.Logger
}

func NewExportService(listing UserListingService, logger *slog.Logger) ExportService {
	return &exportService{listing: listing, logger: logger}
}

// ExportUsers renders ListAll as an xlsx workbook with one row per user.
func (s *exportService) ExportUsers(ctx context.Context) ([]byte, error) {
	users, err := s.listing.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", usersSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(usersSheet, "A1", &userExportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(usersSheet, "A1", "I1", style)
	}
	_ = f.SetColWidth(usersSheet, "A", "I", 22)

	for i, user := range users {
		course := ""
		if user.CourseName != nil {
			course = *user.CourseName
		}
		row := []interface{}{
			user.ID,
			user.Name,
			user.Email,
			user.RegistrationNumber,
			user.Role.String(),
			user.Enabled,
			course,
			strings.Join(user.DisciplineNames, ", "),
			user.PendingCompletion,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(usersSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	s.logger.Info("Users exported", "rows", len(users))
	return buf.Bytes(), nil
}
