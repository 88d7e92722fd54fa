// Package notify formats Gas Town events (nudges, broadcasts, convoy
// updates, escalations) into rich embeds for delivery to the seer.
//
// The formatter is a pure transform: no I/O, no mutable state beyond the
// static color and emoji tables. Every function is safe for concurrent use.
package notify

// EventKind identifies a Gas Town event type.
type EventKind string

const (
	KindNudge        EventKind = "nudge"
	KindBroadcast    EventKind = "broadcast"
	KindMail         EventKind = "mail"
	KindConvoyUpdate EventKind = "convoy_update"
	KindEscalation   EventKind = "escalation"
	KindHandoff      EventKind = "handoff"
	KindCompletion   EventKind = "completion"
	KindGeneric      EventKind = "generic"
)

// kindColors maps each event kind to its embed color.
var kindColors = map[EventKind]int{
	KindNudge:        0x5865F2, // Discord Blurple
	KindBroadcast:    0xFEE75C, // Yellow
	KindMail:         0x57F287, // Green
	KindConvoyUpdate: 0xEB459E, // Pink
	KindEscalation:   0xED4245, // Red
	KindHandoff:      0x3BA55D, // Dark Green
	KindCompletion:   0x57F287, // Green
}

// Color returns the embed color for a kind, falling back to the nudge
// color for unknown kinds.
func Color(kind EventKind) int {
	if c, ok := kindColors[kind]; ok {
		return c
	}
	return kindColors[KindNudge]
}

// severityEmoji maps escalation severities to their marker emoji.
// Unknown severities render as medium.
var severityEmoji = map[string]string{
	"low":      "ℹ️",
	"medium":   "⚠️",
	"high":     "🔴",
	"critical": "🚨",
}

// scopeDisplay maps broadcast target scopes to their display form.
// Scopes not listed here pass through verbatim.
var scopeDisplay = map[string]string{
	"workers": "All Workers",
	"all":     "All Agents (including infrastructure)",
}
