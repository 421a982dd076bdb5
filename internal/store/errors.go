package store

import (
	"errors"
	"strings"
)

const (
	sqliteConstraintCode       = 19
	sqliteConstraintUnique     = 2067
	sqliteConstraintPrimaryKey = 1555
)

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint
// failure raised by SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() {
		case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
			return true
		case sqliteConstraintCode:
			return strings.Contains(err.Error(), "UNIQUE constraint failed")
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// UniqueViolationColumn returns the "table.column" named by a UNIQUE
// constraint failure, or an empty string when err is not one.
func UniqueViolationColumn(err error) string {
	if !IsUniqueViolation(err) {
		return ""
	}
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}
	rest := msg[idx+len(marker):]
	if end := strings.IndexAny(rest, " ,)"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
