package gesture

import (
	"testing"

	"go.aimuz.me/signal/internal/types"
	"go.aimuz.me/signal/vision"
)

// pose builds a 21-point hand with the keypoints that matter set explicitly.
func pose(thumbTip, thumbIP, indexTip, indexMCP, middleTip, middleMCP float64) vision.Hand {
	h := make(vision.Hand, vision.HandLandmarkCount)
	for i := range h {
		h[i] = vision.Landmark{X: 0.5, Y: 0.5}
	}
	h[ThumbTip].Y = thumbTip
	h[ThumbIP].Y = thumbIP
	h[IndexTip].Y = indexTip
	h[IndexMCP].Y = indexMCP
	h[MiddleTip].Y = middleTip
	h[MiddleMCP].Y = middleMCP
	return h
}

func thumbsUp() vision.Hand { return pose(0.2, 0.3, 0.6, 0.5, 0.62, 0.5) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		hand vision.Hand
		want bool
	}{
		{"ThumbsUp", thumbsUp(), true},
		{"ThumbDown", pose(0.4, 0.3, 0.6, 0.5, 0.62, 0.5), false},
		{"ThumbLevel", pose(0.3, 0.3, 0.6, 0.5, 0.62, 0.5), false},
		{"IndexExtended", pose(0.2, 0.3, 0.3, 0.5, 0.62, 0.5), false},
		{"MiddleExtended", pose(0.2, 0.3, 0.6, 0.5, 0.3, 0.5), false},
		{"OpenPalm", pose(0.2, 0.3, 0.1, 0.5, 0.1, 0.5), false},
		{"TooFewLandmarks", thumbsUp()[:13], false},
		{"Empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := Classify(tt.hand)
			if ok != tt.want {
				t.Fatalf("Classify() ok = %v, want %v", ok, tt.want)
			}
			if ok && cmd != types.CommandCopyResponse {
				t.Errorf("Classify() = %q, want %q", cmd, types.CommandCopyResponse)
			}
		})
	}
}
