package notify

import (
	"fmt"
	"strings"
	"time"
)

// NudgeEvent is a direct agent-to-agent nudge.
type NudgeEvent struct {
	From    string // source agent, e.g. "discord_bot/crew/notify"
	To      string // target agent
	Message string
	Rig     string // optional rig name for routing
	Time    string // optional ISO-8601 timestamp, defaults to now
}

// BroadcastEvent is a message fanned out to a scope of agents.
type BroadcastEvent struct {
	From    string
	Message string
	Scope   string // "workers" (default), "all", or a specific rig
	Rig     string
	Time    string
}

// MailEvent is an agent mail delivery.
type MailEvent struct {
	From     string
	To       string
	Subject  string
	Message  string
	MailID   string // optional bead ID
	Priority string // optional priority level
	Rig      string
	Time     string
}

// ConvoyUpdateEvent is a progress update for a convoy of work items.
type ConvoyUpdateEvent struct {
	ConvoyID   string
	ConvoyName string
	Status     string
	Message    string
	Completed  *int // optional completed task count
	Total      *int // optional total task count
	Rig        string
	Time       string
}

// EscalationEvent is an issue raised for the seer's attention.
type EscalationEvent struct {
	From     string
	Issue    string
	Severity string // low, medium, high, critical
	Details  string
	BeadID   string // optional related bead
	Rig      string
	Time     string
}

// HandoffEvent is a work handoff between agents.
type HandoffEvent struct {
	From       string
	Subject    string
	Message    string
	HookedWork string // optional hooked bead/molecule ID
	Rig        string
	Time       string
}

// CompletionEvent reports a finished bead.
type CompletionEvent struct {
	Agent     string
	BeadID    string
	BeadTitle string
	Summary   string
	Rig       string
	Time      string
}

// GenericEvent is the fallback for unrecognized event kinds.
type GenericEvent struct {
	Title   string
	Message string
	Kind    EventKind // used for color coding, defaults to nudge
	Fields  []Field   // optional caller-supplied fields
	Rig     string
	Time    string
}

// FormatNudge formats a nudge event.
func FormatNudge(e NudgeEvent) Embed {
	return Embed{
		Title:       "💬 Agent Nudge",
		Description: e.Message,
		Color:       Color(KindNudge),
		Fields: []Field{
			{Name: "From", Value: code(e.From), Inline: true},
			{Name: "To", Value: code(e.To), Inline: true},
		},
		Timestamp: timestamp(e.Time),
		Footer:    rigFooter(e.Rig, "Gas Town"),
	}
}

// FormatBroadcast formats a broadcast event. An empty scope defaults
// to "workers".
func FormatBroadcast(e BroadcastEvent) Embed {
	scope := e.Scope
	if scope == "" {
		scope = "workers"
	}
	display, ok := scopeDisplay[scope]
	if !ok {
		display = scope
	}

	return Embed{
		Title:       "📢 Broadcast",
		Description: e.Message,
		Color:       Color(KindBroadcast),
		Fields: []Field{
			{Name: "From", Value: code(e.From), Inline: true},
			{Name: "Scope", Value: display, Inline: true},
		},
		Timestamp: timestamp(e.Time),
		Footer:    rigFooter(e.Rig, "Town-wide"),
	}
}

// FormatMail formats a mail event. Mail embeds carry no footer.
func FormatMail(e MailEvent) Embed {
	fields := []Field{
		{Name: "From", Value: code(e.From), Inline: true},
		{Name: "To", Value: code(e.To), Inline: true},
	}
	if e.Priority != "" {
		fields = append(fields, Field{Name: "Priority", Value: e.Priority, Inline: true})
	}
	if e.MailID != "" {
		fields = append(fields, Field{Name: "Mail ID", Value: code(e.MailID), Inline: false})
	}

	return Embed{
		Title:       "📧 " + e.Subject,
		Description: truncate(e.Message),
		Color:       Color(KindMail),
		Fields:      fields,
		Timestamp:   timestamp(e.Time),
	}
}

// FormatConvoyUpdate formats a convoy progress update. The progress field
// is present only when both completed and total are supplied.
func FormatConvoyUpdate(e ConvoyUpdateEvent) Embed {
	fields := []Field{
		{Name: "Convoy ID", Value: code(e.ConvoyID), Inline: true},
		{Name: "Status", Value: e.Status, Inline: true},
	}

	if e.Completed != nil && e.Total != nil {
		percentage := 0
		if *e.Total > 0 {
			percentage = *e.Completed * 100 / *e.Total
		}
		fields = append(fields, Field{
			Name:   "Progress",
			Value:  fmt.Sprintf("%s %d/%d (%d%%)", progressBar(percentage, 10), *e.Completed, *e.Total, percentage),
			Inline: false,
		})
	}

	return Embed{
		Title:       "🚚 Convoy: " + e.ConvoyName,
		Description: e.Message,
		Color:       Color(KindConvoyUpdate),
		Fields:      fields,
		Timestamp:   timestamp(e.Time),
		Footer:      rigFooter(e.Rig, "Gas Town"),
	}
}

// FormatEscalation formats an escalation event. Severity is rendered
// uppercased with a severity emoji; unknown severities render as medium.
func FormatEscalation(e EscalationEvent) Embed {
	emoji, ok := severityEmoji[strings.ToLower(e.Severity)]
	if !ok {
		emoji = severityEmoji["medium"]
	}

	fields := []Field{
		{Name: "From", Value: code(e.From), Inline: true},
		{Name: "Severity", Value: emoji + " " + strings.ToUpper(e.Severity), Inline: true},
	}
	if e.BeadID != "" {
		fields = append(fields, Field{Name: "Related Bead", Value: code(e.BeadID), Inline: false})
	}

	return Embed{
		Title:       "🚨 Escalation: " + e.Issue,
		Description: truncate(e.Details),
		Color:       Color(KindEscalation),
		Fields:      fields,
		Timestamp:   timestamp(e.Time),
		Footer:      rigFooter(e.Rig, "Gas Town"),
	}
}

// FormatHandoff formats a handoff event.
func FormatHandoff(e HandoffEvent) Embed {
	fields := []Field{
		{Name: "From", Value: code(e.From), Inline: true},
	}
	if e.HookedWork != "" {
		fields = append(fields, Field{Name: "Hooked Work", Value: code(e.HookedWork), Inline: true})
	}

	return Embed{
		Title:       "🤝 Handoff: " + e.Subject,
		Description: truncate(e.Message),
		Color:       Color(KindHandoff),
		Fields:      fields,
		Timestamp:   timestamp(e.Time),
		Footer:      rigFooter(e.Rig, "Gas Town"),
	}
}

// FormatCompletion formats a work completion event.
func FormatCompletion(e CompletionEvent) Embed {
	return Embed{
		Title:       "✅ Completed: " + e.BeadTitle,
		Description: e.Summary,
		Color:       Color(KindCompletion),
		Fields: []Field{
			{Name: "Agent", Value: code(e.Agent), Inline: true},
			{Name: "Bead ID", Value: code(e.BeadID), Inline: true},
		},
		Timestamp: timestamp(e.Time),
		Footer:    rigFooter(e.Rig, "Gas Town"),
	}
}

// FormatGeneric formats a generic event. Unlike the other kinds the footer
// is present only when a rig is supplied, and fields are caller-provided.
func FormatGeneric(e GenericEvent) Embed {
	embed := Embed{
		Title:       e.Title,
		Description: e.Message,
		Color:       Color(e.Kind),
		Timestamp:   timestamp(e.Time),
	}
	if len(e.Fields) > 0 {
		embed.Fields = e.Fields
	}
	if e.Rig != "" {
		embed.Footer = &Footer{Text: "Rig: " + e.Rig}
	}
	return embed
}

// code wraps a value in backticks for monospace rendering.
func code(v string) string {
	return "`" + v + "`"
}

// timestamp returns the caller-supplied timestamp verbatim, or the current
// UTC time in ISO-8601 when absent. Passing timestamps through untouched
// keeps formatting deterministic for callers that supply one.
func timestamp(t string) string {
	if t != "" {
		return t
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// rigFooter builds the standard footer: "Rig: {rig}" when a rig is present,
// otherwise the kind-appropriate fallback text.
func rigFooter(rig, fallback string) *Footer {
	if rig != "" {
		return &Footer{Text: "Rig: " + rig}
	}
	return &Footer{Text: fallback}
}

// progressBar renders a fixed-length text progress bar for a percentage.
func progressBar(percentage, length int) string {
	filled := percentage * length / 100
	if filled > length {
		filled = length
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", length-filled) + "]"
}
