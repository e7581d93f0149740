package feed

import (
	"errors"
	"testing"

	"go.aimuz.me/signal/internal/types"
)

func TestSelectorRiskScenario(t *testing.T) {
	r := NewReducer()
	sel := NewSelector(r)

	r.Reduce([]byte(`{"type":"RISK_DETECTED","confidence":0.9,"title":"Budget overrun","timestamp":1000}`))

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	idx, ok := sel.ActiveIndex()
	if !ok || idx != 0 {
		t.Errorf("ActiveIndex() = %d, %v, want 0, true", idx, ok)
	}
	if sel.ResponseReady() {
		t.Error("ResponseReady() = true, want false")
	}
}

func TestSelectorEmpty(t *testing.T) {
	sel := NewSelector(NewReducer())
	if _, ok := sel.ActiveIndex(); ok {
		t.Error("ActiveIndex() ok = true on empty history")
	}
	if _, ok := sel.Active(); ok {
		t.Error("Active() ok = true on empty history")
	}
	if sel.ResponseReady() {
		t.Error("ResponseReady() = true on empty history")
	}
	if err := sel.Select(0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Select(0) error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestSelectorOverrideUntilNextArrival(t *testing.T) {
	r := NewReducer()
	sel := NewSelector(r)

	r.Reduce([]byte(`{"type":"INPUT_REQUIRED","title":"A","suggestedResponse":"Sure."}`))
	r.Reduce([]byte(`{"type":"RISK_DETECTED","title":"B"}`))

	if sel.ResponseReady() {
		t.Error("ResponseReady() = true for B")
	}

	if err := sel.Select(0); err != nil {
		t.Fatalf("Select(0) error = %v", err)
	}
	if idx, _ := sel.ActiveIndex(); idx != 0 {
		t.Errorf("ActiveIndex() = %d, want 0", idx)
	}
	if !sel.ResponseReady() {
		t.Error("ResponseReady() = false for A")
	}

	r.Reduce([]byte(`{"type":"IDLE"}`))
	if idx, _ := sel.ActiveIndex(); idx != 0 {
		t.Errorf("heartbeat moved ActiveIndex to %d", idx)
	}

	r.Reduce([]byte(`{"type":"DECISION_POINT","title":"C"}`))
	if idx, _ := sel.ActiveIndex(); idx != 2 {
		t.Errorf("ActiveIndex() = %d after arrival, want 2", idx)
	}
}

func TestSelectorImagePairing(t *testing.T) {
	r := NewReducer()
	sel := NewSelector(r)

	r.Reduce([]byte(`{"type":"DECISION_POINT","title":"A","suggestedResponse":"Go with option 2."}`))
	r.Reduce([]byte(`{"type":"IMAGE_GENERATED","title":"B","imageBase64":"iVBORw=="}`))

	d, ok := sel.Active()
	if !ok {
		t.Fatal("Active() ok = false")
	}
	if d.Index != 1 {
		t.Errorf("Index = %d, want 1", d.Index)
	}
	if d.Primary.Title != "A" {
		t.Errorf("Primary.Title = %q, want %q", d.Primary.Title, "A")
	}
	if d.Image == nil || d.Image.Title != "B" {
		t.Errorf("Image = %+v, want B", d.Image)
	}
	if sel.ResponseReady() {
		t.Error("ResponseReady() = true for image entry without its own response")
	}

	if err := sel.Select(0); err != nil {
		t.Fatalf("Select(0) error = %v", err)
	}
	if !sel.ResponseReady() {
		t.Error("ResponseReady() = false for A")
	}
}

func TestSelectorImageWithOwnResponse(t *testing.T) {
	r := NewReducer()
	sel := NewSelector(r)

	r.Reduce([]byte(`{"type":"RISK_DETECTED","title":"A"}`))
	r.Reduce([]byte(`{"type":"IMAGE_GENERATED","title":"B","suggestedResponse":"See the diagram."}`))

	if !sel.ResponseReady() {
		t.Error("ResponseReady() = false for image entry with its own response")
	}
}

func TestResolve(t *testing.T) {
	a := types.Signal{Type: types.SignalDecisionPoint, Title: "A"}
	img1 := types.Signal{Type: types.SignalImageGenerated, Title: "I1"}
	img2 := types.Signal{Type: types.SignalImageGenerated, Title: "I2"}

	tests := []struct {
		name        string
		history     []types.Signal
		index       int
		wantOK      bool
		wantPrimary string
		wantImage   string
	}{
		{"Plain", []types.Signal{a}, 0, true, "A", ""},
		{"ImageFirstFallsBackToItself", []types.Signal{img1}, 0, true, "I1", "I1"},
		{"ImagePairsWithPrevious", []types.Signal{a, img1}, 1, true, "A", "I1"},
		{"ImageSkipsImages", []types.Signal{a, img1, img2}, 2, true, "A", "I2"},
		{"OutOfRange", []types.Signal{a}, 3, false, "", ""},
		{"Negative", []types.Signal{a}, -1, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Resolve(tt.history, tt.index)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if d.Primary.Title != tt.wantPrimary {
				t.Errorf("Primary.Title = %q, want %q", d.Primary.Title, tt.wantPrimary)
			}
			gotImage := ""
			if d.Image != nil {
				gotImage = d.Image.Title
			}
			if gotImage != tt.wantImage {
				t.Errorf("Image = %q, want %q", gotImage, tt.wantImage)
			}
		})
	}
}

func TestSelectorOnChange(t *testing.T) {
	r := NewReducer()
	sel := NewSelector(r)

	var got []int
	sel.OnChange(func(d types.Display) { got = append(got, d.Index) })

	r.Reduce([]byte(`{"type":"DECISION_POINT"}`))
	r.Reduce([]byte(`{"type":"DECISION_POINT"}`))
	_ = sel.Select(0)

	want := []int{0, 1, 0}
	if len(got) != len(want) {
		t.Fatalf("changes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("changes[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
