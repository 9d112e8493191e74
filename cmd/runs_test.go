package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/leadflow/leadflow-server/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	runs := []model.RunSummary{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Date:      now,
			Keywords:  "plumbers",
			Locations: "Sydney",
			LeadCount: 5,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Date:      now.Add(-time.Hour),
			Keywords:  "electricians",
			Locations: "Melbourne",
			LeadCount: 3,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "KEYWORDS")
	assert.Contains(t, output, "plumbers")
	assert.Contains(t, output, "electricians")
	assert.Contains(t, output, "2026-03-01 10:30")
}
