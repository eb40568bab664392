package fingerprint

import "testing"

func TestOf_Stable(t *testing.T) {
	a := Of("page-1", "comment", "hello")
	b := Of("page-1", "comment", "hello")

	if a != b {
		t.Fatalf("fingerprint not stable: %s != %s", a, b)
	}

	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestOf_FieldBoundaries(t *testing.T) {
	if Of("ab", "c") == Of("a", "bc") {
		t.Error("different field splits produced the same fingerprint")
	}
}

func TestShort(t *testing.T) {
	full := Of("x")

	if got := Short(16, "x"); got != full[:16] {
		t.Errorf("Short(16) = %s, want %s", got, full[:16])
	}

	if got := Short(0, "x"); got != full {
		t.Errorf("Short(0) should return full fingerprint")
	}
}
