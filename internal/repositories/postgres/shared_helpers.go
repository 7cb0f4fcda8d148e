package postgres

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

// handleDBError is a package-level helper for handling database errors. Missing
// rows map to repositories.ErrNotFound and unique violations to
// repositories.ErrDuplicate.
func handleDBError(err error, operation string) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s failed: %w", operation, repositories.ErrNotFound)
	case isDuplicateKey(err):
		return fmt.Errorf("%s failed: %w: %v", operation, repositories.ErrDuplicate, err)
	}

	return fmt.Errorf("%s failed: %w", operation, err)
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key value")
}
