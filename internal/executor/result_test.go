package executor

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func sampleResults() []Result {
	return []Result{
		{Name: "acme/visits", Seq: 2, Duration: 30 * time.Millisecond},
		{Name: "acme/pageviews", Seq: 0, Error: errors.New("status 500"), Duration: 10 * time.Millisecond},
		{Name: "globex/visits", Seq: 1, Duration: 20 * time.Millisecond},
		{Name: "globex/pageviews", Seq: 3, Error: errors.New("decode"), Duration: 40 * time.Millisecond},
	}
}

func TestCounts(t *testing.T) {
	tests := []struct {
		name           string
		results        []Result
		wantSuccessful int
		wantFailed     int
	}{
		{
			name:    "empty results",
			results: []Result{},
		},
		{
			name:           "mixed",
			results:        sampleResults(),
			wantSuccessful: 2,
			wantFailed:     2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountSuccessful(tt.results); got != tt.wantSuccessful {
				t.Errorf("CountSuccessful() = %d, want %d", got, tt.wantSuccessful)
			}
			if got := CountFailed(tt.results); got != tt.wantFailed {
				t.Errorf("CountFailed() = %d, want %d", got, tt.wantFailed)
			}
			if got := len(FilterFailed(tt.results)); got != tt.wantFailed {
				t.Errorf("FilterFailed() returned %d, want %d", got, tt.wantFailed)
			}
		})
	}
}

func TestSortBySubmission(t *testing.T) {
	in := sampleResults()
	sorted := SortBySubmission(in)

	for i, r := range sorted {
		if r.Seq != i {
			t.Errorf("position %d has seq %d", i, r.Seq)
		}
	}
	if in[0].Seq != 2 {
		t.Error("SortBySubmission must not reorder its input")
	}
}

func TestDurations(t *testing.T) {
	results := sampleResults()

	if got := AverageDuration(results); got != 25*time.Millisecond {
		t.Errorf("AverageDuration() = %s", got)
	}
	if got := MaxDuration(results); got != 40*time.Millisecond {
		t.Errorf("MaxDuration() = %s", got)
	}
	if got := MinDuration(results); got != 10*time.Millisecond {
		t.Errorf("MinDuration() = %s", got)
	}
	if AverageDuration(nil) != 0 || MaxDuration(nil) != 0 || MinDuration(nil) != 0 {
		t.Error("expected zero durations for no results")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResults())

	if s.Total != 4 || s.Successful != 2 || s.Failed != 2 {
		t.Errorf("unexpected summary %+v", s)
	}

	str := s.String()
	for _, want := range []string{"Total: 4", "Successful: 2", "Failed: 2", "Max: 40ms"} {
		if !strings.Contains(str, want) {
			t.Errorf("summary %q missing %q", str, want)
		}
	}

	if empty := Summarize(nil).String(); strings.Contains(empty, "Avg") {
		t.Errorf("empty summary should omit durations, got %q", empty)
	}
}

func TestSuccessRate(t *testing.T) {
	if got := SuccessRate(sampleResults()); got != 50.0 {
		t.Errorf("SuccessRate() = %v, want 50", got)
	}
	if got := SuccessRate(nil); got != 0 {
		t.Errorf("SuccessRate(nil) = %v, want 0", got)
	}
}
