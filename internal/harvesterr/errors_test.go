package harvesterr

import (
	"errors"
	"fmt"
	"testing"
)

var errBoom = errors.New("boom")

func TestClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		transient   bool
		unavailable bool
		config      bool
	}{
		{"transient", Transient("search", 2, errBoom), true, false, false},
		{"wrapped transient", fmt.Errorf("outer: %w", Transient("search", 0, errBoom)), true, false, false},
		{"unavailable", Unavailable("telegram", "@chan", errBoom), false, true, false},
		{"configuration", Configuration("twitter", "no users"), false, false, true},
		{"plain", errBoom, false, false, false},
		{"nil", nil, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v", got, tt.transient)
			}

			if got := IsEntityUnavailable(tt.err); got != tt.unavailable {
				t.Errorf("IsEntityUnavailable = %v, want %v", got, tt.unavailable)
			}

			if got := IsConfiguration(tt.err); got != tt.config {
				t.Errorf("IsConfiguration = %v, want %v", got, tt.config)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	if !errors.Is(Transient("op", 1, errBoom), errBoom) {
		t.Error("TransientFetchError does not unwrap to cause")
	}

	if !errors.Is(Unavailable("p", "e", errBoom), errBoom) {
		t.Error("EntityUnavailableError does not unwrap to cause")
	}
}

func TestMessages(t *testing.T) {
	got := Transient("timeline", 3, errBoom).Error()
	if got != "transient failure in timeline (page 3): boom" {
		t.Errorf("unexpected message %q", got)
	}

	got = Configuration("kobo", "missing %s", "asset").Error()
	if got != "kobo: invalid configuration: missing asset" {
		t.Errorf("unexpected message %q", got)
	}
}
