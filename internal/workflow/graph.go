package workflow

import "strings"

// Stage identifies a node in the forward-only workflow. Stages run in fixed
// topological order; no stage is revisited for the same email.
type Stage int

const (
	StageDatetimeDetection Stage = iota
	StageMeetingConfirmation
	StageUrgencyAnalysis
	StageDraftCreation
	StageEnd
)

// String returns the node name used in log events.
func (s Stage) String() string {
	switch s {
	case StageDatetimeDetection:
		return "datetime_detection"
	case StageMeetingConfirmation:
		return "meeting_confirmation"
	case StageUrgencyAnalysis:
		return "urgency_analysis"
	case StageDraftCreation:
		return "draft_creation"
	}
	return "end"
}

// terminalActions maps each stage to the action tags that route to End after
// it. Failure tags are deliberately absent: a failed booking attempt still
// falls through to the later stages.
var terminalActions = map[Stage]map[ActionTag]bool{
	StageDatetimeDetection: {
		ActionBookingCompleted:   true,
		ActionIgnoredNoReply:     true,
		ActionNotUrgentProcessed: true,
	},
	StageMeetingConfirmation: {
		ActionMeetingConfirmed:   true,
		ActionIgnoredNoReply:     true,
		ActionNotUrgentProcessed: true,
	},
}

// successor is the forward edge taken when a stage did not terminate.
var successor = map[Stage]Stage{
	StageDatetimeDetection:   StageMeetingConfirmation,
	StageMeetingConfirmation: StageUrgencyAnalysis,
	StageUrgencyAnalysis:     StageDraftCreation,
	StageDraftCreation:       StageEnd,
}

// Next routes from a completed stage. It is a pure function of the stage and
// the context's action tag / urgency result.
func Next(stage Stage, ctx *Context) Stage {
	if terminalActions[stage][ctx.Action] {
		return StageEnd
	}
	if stage == StageUrgencyAnalysis && !strings.HasPrefix(ctx.UrgencyResult, "urgent") {
		return StageEnd
	}
	return successor[stage]
}
