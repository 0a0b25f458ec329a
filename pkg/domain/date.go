package domain

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DateLayout is the timestamp layout used throughout the export.
const DateLayout = "2006-01-02 15:04:05"

// NormalizeDate converts a free-form date into DateLayout in UTC. Values
// without a zone are read as UTC. Values that do not parse are returned
// trimmed but otherwise unchanged.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	t, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return value
	}

	return t.UTC().Format(DateLayout)
}
