package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/toolmeter/internal/model"
)

func TestFormatCount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{9_999, "9,999"},
		{12_345, "12.3K"},
		{1_500_000, "1.5M"},
		{2_000_000_000, "2.0B"},
	}
	for _, tt := range tests {
		if got := FormatCount(tt.in); got != tt.want {
			t.Errorf("FormatCount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatCost(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "$0.00"},
		{0.0042, "$0.0042"},
		{0.5, "$0.50"},
		{12.34, "$12.3"},
		{250, "$250"},
		{12345.6, "$12,346"},
	}
	for _, tt := range tests {
		if got := FormatCost(tt.in); got != tt.want {
			t.Errorf("FormatCost(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMillis(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0ms"},
		{0.42, "0.42ms"},
		{612, "612ms"},
		{1830, "1.83s"},
		{125_000, "2m 5s"},
	}
	for _, tt := range tests {
		if got := FormatMillis(tt.in); got != tt.want {
			t.Errorf("FormatMillis(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{250 * time.Millisecond, "250ms"},
		{45 * time.Second, "45s"},
		{3725 * time.Second, "1h 2m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{123, "123"},
		{1234, "1,234"},
		{1234567, "1,234,567"},
		{-9876, "-9,876"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDelta(t *testing.T) {
	if got := FormatDelta(3, 1); got != "+$2.00" {
		t.Errorf("FormatDelta(3, 1) = %q", got)
	}
	if got := FormatDelta(1, 3); got != "-$2.00" {
		t.Errorf("FormatDelta(1, 3) = %q", got)
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(Table{
		Headers: []string{"Tool", "Calls"},
		Rows: [][]string{
			{"git_log", "12"},
			SeparatorRow,
			{"total", "1,024"},
		},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7:\n%s", len(lines), out)
	}
	for _, want := range []string{"git_log", "1,024", "Calls"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q", want)
		}
	}
	if RenderTable(Table{}) != "" {
		t.Error("empty table should render nothing")
	}
}

func TestRenderSparkline(t *testing.T) {
	if got := RenderSparkline([]float64{0, 7}); got != "▁█" {
		t.Errorf("RenderSparkline = %q, want ▁█", got)
	}
	if got := RenderSparkline(nil); got != "" {
		t.Errorf("RenderSparkline(nil) = %q", got)
	}
}

func TestRenderAlert(t *testing.T) {
	a := model.Alert{Rule: "slow", Metric: "p99", Value: 612, Threshold: 500, TriggeredAt: time.Now()}
	if out := RenderAlert(a); !strings.Contains(out, "slow") {
		t.Errorf("RenderAlert = %q, missing rule name", out)
	}
}
