package model

import "time"

// ViolationType classifies detected integrity violations.
type ViolationType string

const (
	ViolationTabHidden       ViolationType = "tab-hidden"
	ViolationGeometryAnomaly ViolationType = "window-geometry-anomaly"
	ViolationDevtools        ViolationType = "devtools-heuristic"
	ViolationClipboardCopy   ViolationType = "clipboard-copy"
	ViolationClipboardPaste  ViolationType = "clipboard-paste"
	ViolationContextMenu     ViolationType = "context-menu"
	ViolationFocusLoss       ViolationType = "focus-loss"
)

// Violation is one detected tamper-relevant behavior during an attempt.
type Violation struct {
	Type       ViolationType `json:"type"`
	Message    string        `json:"message"`
	RecordedAt time.Time     `json:"recorded_at"`
}
