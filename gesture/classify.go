// Package gesture turns a stream of hand landmarks into discrete commands.
package gesture

import (
	"go.aimuz.me/signal/internal/types"
	"go.aimuz.me/signal/vision"
)

// Landmark indices of the 21-point hand model.
const (
	ThumbIP   = 3
	ThumbTip  = 4
	IndexMCP  = 5
	IndexTip  = 8
	MiddleMCP = 9
	MiddleTip = 12
)

// Classify maps a hand pose to a command. A thumbs-up (thumb tip above its
// inner joint, index and middle fingertips below their base knuckles) maps to
// COPY_RESPONSE. Smaller Y is higher in the frame.
func Classify(h vision.Hand) (types.Command, bool) {
	if len(h) < vision.HandLandmarkCount {
		return "", false
	}

	thumbUp := h[ThumbTip].Y < h[ThumbIP].Y
	indexCurled := h[IndexTip].Y > h[IndexMCP].Y
	middleCurled := h[MiddleTip].Y > h[MiddleMCP].Y

	if thumbUp && indexCurled && middleCurled {
		return types.CommandCopyResponse, true
	}
	return "", false
}
