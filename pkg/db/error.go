package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Driver-specific substrings for unique violations; gorm only
// translates these when the dialector has TranslateError enabled.
var duplicateKeyMarkers = []string{
	// postgres 23505
	"duplicate key value violates unique constraint",
	// mysql 1062
	"Error 1062",
	// sqlite
	"UNIQUE constraint failed",
	"constraint failed: UNIQUE",
}

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
