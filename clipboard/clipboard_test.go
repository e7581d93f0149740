package clipboard

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	const want = "Yes, we can ship by Friday."
	if err := SetText(want); err != nil {
		if errors.Is(err, ErrUnsupported) {
			t.Skip("no clipboard utility available")
		}
		t.Skipf("clipboard not writable here: %v", err)
	}

	got, err := GetText()
	if err != nil {
		t.Fatalf("GetText() error = %v", err)
	}
	if got != want {
		t.Errorf("GetText() = %q, want %q", got, want)
	}
}
