package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodRange(t *testing.T) {
	type testCase struct {
		name      string
		frame     Timeframe
		wantStart string
		wantEnd   string
	}

	now := time.Date(2024, time.May, 20, 15, 4, 0, 0, time.UTC)

	tests := []testCase{
		{name: "ThisMonth", frame: TimeframeThisMonth, wantStart: "2024-05-01", wantEnd: "2024-05-31"},
		{name: "LastMonth", frame: TimeframeLastMonth, wantStart: "2024-04-01", wantEnd: "2024-04-30"},
		{name: "ThisQuarter", frame: TimeframeThisQuarter, wantStart: "2024-04-01", wantEnd: "2024-06-30"},
		{name: "ThisYear", frame: TimeframeThisYear, wantStart: "2024-01-01", wantEnd: "2024-12-31"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end := periodRange(tc.frame, now)

			assert.Equal(t, tc.wantStart, FormatDate(start))
			assert.Equal(t, tc.wantEnd, FormatDate(end))
		})
	}
}

func TestPeriodRange_LastMonthAcrossYear(t *testing.T) {
	start, end := periodRange(TimeframeLastMonth, time.Date(2025, time.January, 3, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "2024-12-01", FormatDate(start))
	assert.Equal(t, "2024-12-31", FormatDate(end))
}
