package notify

import "strings"

// EventArgs is the flat argument set accepted by the string-keyed dispatch
// entry point. JSON tags match the tool-boundary wire names; fields not
// relevant to a given kind are ignored by its formatter.
type EventArgs struct {
	From        string  `json:"from_agent,omitempty"`
	To          string  `json:"to_agent,omitempty"`
	Message     string  `json:"message,omitempty"`
	Subject     string  `json:"subject,omitempty"`
	MailID      string  `json:"mail_id,omitempty"`
	Priority    string  `json:"priority,omitempty"`
	ConvoyID    string  `json:"convoy_id,omitempty"`
	ConvoyName  string  `json:"convoy_name,omitempty"`
	Status      string  `json:"status,omitempty"`
	Completed   *int    `json:"completed,omitempty"`
	Total       *int    `json:"total,omitempty"`
	Issue       string  `json:"issue,omitempty"`
	Severity    string  `json:"severity,omitempty"`
	Details     string  `json:"details,omitempty"`
	BeadID      string  `json:"bead_id,omitempty"`
	HookedWork  string  `json:"hooked_work,omitempty"`
	Agent       string  `json:"agent,omitempty"`
	BeadTitle   string  `json:"bead_title,omitempty"`
	Summary     string  `json:"summary,omitempty"`
	TargetScope string  `json:"target_scope,omitempty"`
	Title       string  `json:"title,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
	Rig         string  `json:"rig,omitempty"`
	Timestamp   string  `json:"timestamp,omitempty"`
}

// genericFallbackTitle is used when an unrecognized kind supplies no title.
const genericFallbackTitle = "Gas Town Event"

// FormatEvent formats an event by kind name. Kind matching is
// case-insensitive and accepts "convoy" as an alias for convoy updates.
// Unrecognized kinds never fail: they fall through to the generic
// formatter using whatever of title, message and rig were supplied.
func FormatEvent(kind string, args EventArgs) Embed {
	switch strings.ToLower(kind) {
	case string(KindNudge):
		return FormatNudge(NudgeEvent{
			From:    args.From,
			To:      args.To,
			Message: args.Message,
			Rig:     args.Rig,
			Time:    args.Timestamp,
		})
	case string(KindBroadcast):
		return FormatBroadcast(BroadcastEvent{
			From:    args.From,
			Message: args.Message,
			Scope:   args.TargetScope,
			Rig:     args.Rig,
			Time:    args.Timestamp,
		})
	case string(KindMail):
		return FormatMail(MailEvent{
			From:     args.From,
			To:       args.To,
			Subject:  args.Subject,
			Message:  args.Message,
			MailID:   args.MailID,
			Priority: args.Priority,
			Rig:      args.Rig,
			Time:     args.Timestamp,
		})
	case string(KindConvoyUpdate), "convoy":
		return FormatConvoyUpdate(ConvoyUpdateEvent{
			ConvoyID:   args.ConvoyID,
			ConvoyName: args.ConvoyName,
			Status:     args.Status,
			Message:    args.Message,
			Completed:  args.Completed,
			Total:      args.Total,
			Rig:        args.Rig,
			Time:       args.Timestamp,
		})
	case string(KindEscalation):
		return FormatEscalation(EscalationEvent{
			From:     args.From,
			Issue:    args.Issue,
			Severity: args.Severity,
			Details:  args.Details,
			BeadID:   args.BeadID,
			Rig:      args.Rig,
			Time:     args.Timestamp,
		})
	case string(KindHandoff):
		return FormatHandoff(HandoffEvent{
			From:       args.From,
			Subject:    args.Subject,
			Message:    args.Message,
			HookedWork: args.HookedWork,
			Rig:        args.Rig,
			Time:       args.Timestamp,
		})
	case string(KindCompletion):
		return FormatCompletion(CompletionEvent{
			Agent:     args.Agent,
			BeadID:    args.BeadID,
			BeadTitle: args.BeadTitle,
			Summary:   args.Summary,
			Rig:       args.Rig,
			Time:      args.Timestamp,
		})
	default:
		title := args.Title
		if title == "" {
			title = genericFallbackTitle
		}
		return FormatGeneric(GenericEvent{
			Title:   title,
			Message: args.Message,
			Rig:     args.Rig,
			Time:    args.Timestamp,
		})
	}
}
