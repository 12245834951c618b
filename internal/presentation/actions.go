package presentation

import "strings"

// ViewContext is the screen the user is looking at when a key arrives.
type ViewContext string

const (
	ContextSummary ViewContext = "summary"
	ContextDetail  ViewContext = "detail"
	ContextDiff    ViewContext = "diff"
	ContextCompare ViewContext = "compare"
)

// Action is one review operation.
type Action string

const (
	ActionAccept         Action = "accept"
	ActionReject         Action = "reject"
	ActionRejectAll      Action = "rejectAll"
	ActionRequestChanges Action = "requestChanges"
	ActionViewDetails    Action = "viewDetails"
	ActionViewDiff       Action = "viewDiff"
	ActionCompare        Action = "compare"
	ActionNextFile       Action = "nextFile"
	ActionPrevFile       Action = "prevFile"
	ActionBackToSummary  Action = "backToSummary"
	ActionManualReview   Action = "manualReview"
)

// ActionBarConfig carries the state ParseAction needs to resolve targets.
type ActionBarConfig struct {
	Context            ViewContext
	WinnerID           string
	CurrentIterationID string
	FileIndex          int
	FileCount          int
}

// ActionEvent is a parsed keystroke. TargetID is the iteration the
// action applies to, when one is implied.
type ActionEvent struct {
	Action   Action
	TargetID string
}

// ParseAction maps one key to an action, case-insensitively. Unknown
// keys return nil.
func ParseAction(key string, cfg ActionBarConfig) *ActionEvent {
	target := cfg.CurrentIterationID
	if target == "" {
		target = cfg.WinnerID
	}

	switch strings.ToLower(strings.TrimSpace(key)) {
	case "a":
		return &ActionEvent{Action: ActionAccept, TargetID: target}
	case "x":
		if cfg.Context == ContextSummary {
			return &ActionEvent{Action: ActionRejectAll}
		}
		return &ActionEvent{Action: ActionReject, TargetID: target}
	case "v":
		return &ActionEvent{Action: ActionViewDetails, TargetID: cfg.WinnerID}
	case "d":
		return &ActionEvent{Action: ActionViewDiff, TargetID: target}
	case "c":
		return &ActionEvent{Action: ActionCompare}
	case "r":
		return &ActionEvent{Action: ActionRequestChanges, TargetID: target}
	case "b", "q":
		return &ActionEvent{Action: ActionBackToSummary}
	case "n":
		return &ActionEvent{Action: ActionNextFile}
	case "p":
		return &ActionEvent{Action: ActionPrevFile}
	case "m":
		return &ActionEvent{Action: ActionManualReview}
	default:
		return nil
	}
}
