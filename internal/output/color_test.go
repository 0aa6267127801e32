package output

import (
	"bytes"
	"os"
	"testing"
)

func TestNewColorScheme(t *testing.T) {
	tests := []struct {
		name             string
		noColor          bool
		writer           *bytes.Buffer
		expectedDisabled bool
	}{
		{
			name:             "colors disabled with noColor flag",
			noColor:          true,
			writer:           &bytes.Buffer{},
			expectedDisabled: true,
		},
		{
			name:             "colors disabled for non-TTY",
			noColor:          false,
			writer:           &bytes.Buffer{},
			expectedDisabled: true, // bytes.Buffer is not a TTY
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := NewColorScheme(tt.writer, tt.noColor)

			if cs == nil {
				t.Fatal("NewColorScheme returned nil")
			}

			if cs.Disabled != tt.expectedDisabled {
				t.Errorf("Disabled = %v, want %v", cs.Disabled, tt.expectedDisabled)
			}

			// Test that color functions work (even if disabled)
			if cs.Community == nil {
				t.Error("Community function is nil")
			}
			if cs.Success == nil {
				t.Error("Success function is nil")
			}
			if cs.Error == nil {
				t.Error("Error function is nil")
			}
			if cs.Warning == nil {
				t.Error("Warning function is nil")
			}
			if cs.Header == nil {
				t.Error("Header function is nil")
			}
			if cs.Duration == nil {
				t.Error("Duration function is nil")
			}
		})
	}
}

func TestColorScheme_Functions(t *testing.T) {
	// Test with colors disabled
	cs := NewColorScheme(&bytes.Buffer{}, true)

	tests := []struct {
		name     string
		fn       func(format string, a ...interface{}) string
		format   string
		args     []interface{}
		expected string
	}{
		{
			name:     "Community",
			fn:       cs.Community,
			format:   "community-%d",
			args:     []interface{}{1},
			expected: "community-1",
		},
		{
			name:     "Success",
			fn:       cs.Success,
			format:   "success: %s",
			args:     []interface{}{"ok"},
			expected: "success: ok",
		},
		{
			name:     "Error",
			fn:       cs.Error,
			format:   "error: %s",
			args:     []interface{}{"failed"},
			expected: "error: failed",
		},
		{
			name:     "Warning",
			fn:       cs.Warning,
			format:   "warning: %s",
			args:     []interface{}{"caution"},
			expected: "warning: caution",
		},
		{
			name:     "Header",
			fn:       cs.Header,
			format:   "HEADER",
			args:     nil,
			expected: "HEADER",
		},
		{
			name:     "Duration",
			fn:       cs.Duration,
			format:   "%dms",
			args:     []interface{}{100},
			expected: "100ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.fn(tt.format, tt.args...)
			if result != tt.expected {
				t.Errorf("got %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestColorScheme_StatusColor(t *testing.T) {
	cs := NewColorScheme(&bytes.Buffer{}, true)

	tests := []struct {
		name     string
		hasError bool
		format   string
		expected string
	}{
		{
			name:     "success status",
			hasError: false,
			format:   "OK",
			expected: "OK",
		},
		{
			name:     "error status",
			hasError: true,
			format:   "FAILED",
			expected: "FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := cs.StatusColor(tt.hasError)
			result := fn(tt.format)
			if result != tt.expected {
				t.Errorf("got %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestColorScheme_StatusColorOrWarning(t *testing.T) {
	cs := NewColorScheme(&bytes.Buffer{}, true)

	if got := cs.StatusColorOrWarning(true)("%d", 0); got != "0" {
		t.Errorf("got %q, want %q", got, "0")
	}
	if got := cs.StatusColorOrWarning(false)("%d", 3); got != "3" {
		t.Errorf("got %q, want %q", got, "3")
	}
}

func TestIsTTY(t *testing.T) {
	if isTTY(&bytes.Buffer{}) {
		t.Error("isTTY(bytes.Buffer) = true, want false")
	}

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	if isTTY(f) {
		t.Error("isTTY(regular file) = true, want false")
	}
}
