package ccl

import (
	"testing"
)

func TestReadyState_Values(t *testing.T) {
	tests := []struct {
		state ReadyState
		value int
		name  string
	}{
		{ReadyStateUninitialized, 0, "uninitialized"},
		{ReadyStateLoading, 1, "loading"},
		{ReadyStateLoaded, 2, "loaded"},
		{ReadyStateInteractive, 3, "interactive"},
		{ReadyStateCompleted, 4, "completed"},
		{ReadyState(9), 9, "ReadyState(9)"},
	}

	for _, tt := range tests {
		if int(tt.state) != tt.value {
			t.Errorf("%s = %d, want %d", tt.name, int(tt.state), tt.value)
		}
		if tt.state.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.state.String(), tt.name)
		}
	}
}

func TestStatusCode_Values(t *testing.T) {
	tests := []struct {
		code  StatusCode
		value int
		name  string
		known bool
	}{
		{StatusSuccess, 200, "success", true},
		{StatusMethodNotAllowed, 405, "methodNotAllowed", true},
		{StatusInvalidState, 409, "invalidState", true},
		{StatusNonFatalError, 492, "nonFatalError", true},
		{StatusMemoryError, 493, "memoryError", true},
		{StatusInternalServerException, 500, "internalServerException", true},
		{StatusCode(404), 404, "StatusCode(404)", false},
	}

	for _, tt := range tests {
		if int(tt.code) != tt.value {
			t.Errorf("%s = %d, want %d", tt.name, int(tt.code), tt.value)
		}
		if tt.code.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.code.String(), tt.name)
		}
		if tt.code.Known() != tt.known {
			t.Errorf("%s Known() = %v, want %v", tt.name, tt.code.Known(), tt.known)
		}
		if tt.code.OK() != (tt.value == 200) {
			t.Errorf("%s OK() = %v", tt.name, tt.code.OK())
		}
	}
}

func TestCallArgs(t *testing.T) {
	arg := "x"
	empty := ""

	if got := callArgs("SUB", nil); got != `"SUB"` {
		t.Errorf("callArgs(nil) = %q", got)
	}
	if got := callArgs("SUB", &arg); got != `"SUB", "x"` {
		t.Errorf("callArgs(x) = %q", got)
	}
	if got := callArgs("SUB", &empty); got != `"SUB", ""` {
		t.Errorf("callArgs(empty) = %q", got)
	}
}

func TestReply_String(t *testing.T) {
	r := Reply{
		"NAME":   "Jane",
		"ID":     float64(12345678901),
		"ACTIVE": true,
		"NULL":   nil,
		"ROLES":  []any{"MD", "RN"},
	}

	tests := map[string]string{
		"NAME":    "Jane",
		"ID":      "12345678901",
		"ACTIVE":  "true",
		"NULL":    "",
		"ROLES":   `["MD","RN"]`,
		"MISSING": "",
	}
	for key, want := range tests {
		if got := r.String(key); got != want {
			t.Errorf("String(%q) = %q, want %q", key, got, want)
		}
	}

	if !r.Has("NULL") || r.Has("MISSING") {
		t.Error("Has() mismatch")
	}
	keys := r.Keys()
	if len(keys) != 5 || keys[0] != "ACTIVE" || keys[4] != "ROLES" {
		t.Errorf("Keys() = %v", keys)
	}
}
