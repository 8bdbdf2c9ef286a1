package store

import (
	"database/sql"
	"time"
)

// MySQL DATETIME(3) keeps milliseconds.
func toMillis(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func sameMillis(a, b time.Time) bool {
	return a.UnixNano()/1e6 == b.UnixNano()/1e6
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// clampLimit returns `limit` in range [1, MaxListMessages].
func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListMessages {
		return MaxListMessages
	}
	return limit
}
