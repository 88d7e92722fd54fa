package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixedTime = "2026-01-15T09:30:00Z"

func intPtr(n int) *int { return &n }

func fieldNames(e Embed) []string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Name)
	}
	return names
}

func TestFormatNudge(t *testing.T) {
	embed := FormatNudge(NudgeEvent{
		From:    "discord_bot/crew/notify",
		To:      "discord_bot/crew/core",
		Message: "Check your hook",
		Time:    fixedTime,
	})

	require.Equal(t, "💬 Agent Nudge", embed.Title)
	require.Equal(t, "Check your hook", embed.Description)
	require.Equal(t, 0x5865F2, embed.Color)
	require.Equal(t, []string{"From", "To"}, fieldNames(embed))
	require.Equal(t, "`discord_bot/crew/notify`", embed.Fields[0].Value)
	require.True(t, embed.Fields[0].Inline)
	require.Equal(t, fixedTime, embed.Timestamp)
	require.Equal(t, "Gas Town", embed.Footer.Text)
}

func TestFormatNudge_RigFooter(t *testing.T) {
	embed := FormatNudge(NudgeEvent{From: "a", To: "b", Message: "m", Rig: "gastown"})
	require.Equal(t, "Rig: gastown", embed.Footer.Text)
}

func TestFormatNudge_DefaultTimestamp(t *testing.T) {
	embed := FormatNudge(NudgeEvent{From: "a", To: "b", Message: "m"})
	require.NotEmpty(t, embed.Timestamp)
	require.True(t, strings.HasSuffix(embed.Timestamp, "Z"), "default timestamp should be UTC")
}

func TestFormatBroadcast_ScopeDisplay(t *testing.T) {
	workers := FormatBroadcast(BroadcastEvent{From: "mayor", Message: "m"})
	require.Equal(t, "All Workers", workers.Fields[1].Value, "empty scope defaults to workers")

	all := FormatBroadcast(BroadcastEvent{From: "mayor", Message: "m", Scope: "all"})
	require.Equal(t, "All Agents (including infrastructure)", all.Fields[1].Value)

	custom := FormatBroadcast(BroadcastEvent{From: "mayor", Message: "m", Scope: "gastown"})
	require.Equal(t, "gastown", custom.Fields[1].Value, "unrecognized scopes pass through")
}

func TestFormatBroadcast_TownWideFooter(t *testing.T) {
	embed := FormatBroadcast(BroadcastEvent{From: "mayor", Message: "m"})
	require.Equal(t, "📢 Broadcast", embed.Title)
	require.Equal(t, 0xFEE75C, embed.Color)
	require.Equal(t, "Town-wide", embed.Footer.Text)
}

func TestFormatMail_RequiredFieldsOnly(t *testing.T) {
	embed := FormatMail(MailEvent{
		From:    "sender/",
		To:      "mayor/",
		Subject: "Status report",
		Message: "All quiet",
		Time:    fixedTime,
	})

	require.Equal(t, "📧 Status report", embed.Title)
	require.Equal(t, []string{"From", "To"}, fieldNames(embed), "optional fields must be omitted, not blank")
	require.Nil(t, embed.Footer, "mail has no footer")
}

func TestFormatMail_OptionalFields(t *testing.T) {
	embed := FormatMail(MailEvent{
		From:     "sender/",
		To:       "mayor/",
		Subject:  "Urgent",
		Message:  "Read me",
		MailID:   "bd-123",
		Priority: "high",
	})

	require.Equal(t, []string{"From", "To", "Priority", "Mail ID"}, fieldNames(embed))
	require.Equal(t, "high", embed.Fields[2].Value)
	require.Equal(t, "`bd-123`", embed.Fields[3].Value)
	require.False(t, embed.Fields[3].Inline)
}

func TestFormatMail_TruncatesDescription(t *testing.T) {
	long := strings.Repeat("x", MaxDescriptionLen+500)
	embed := FormatMail(MailEvent{From: "a", To: "b", Subject: "s", Message: long})

	require.Len(t, embed.Description, MaxDescriptionLen)
	require.Equal(t, long[:MaxDescriptionLen], embed.Description)
}

func TestFormatConvoyUpdate_Progress(t *testing.T) {
	embed := FormatConvoyUpdate(ConvoyUpdateEvent{
		ConvoyID:   "hq-cv-001",
		ConvoyName: "Q1 Launch",
		Status:     "in progress",
		Message:    "Rolling",
		Completed:  intPtr(2),
		Total:      intPtr(5),
	})

	require.Equal(t, "🚚 Convoy: Q1 Launch", embed.Title)
	require.Equal(t, []string{"Convoy ID", "Status", "Progress"}, fieldNames(embed))

	progress := embed.Fields[2].Value
	require.Contains(t, progress, "2/5 (40%)")
	require.Equal(t, 4, strings.Count(progress, "█"), "40%% fills 4 of 10 segments")
	require.Equal(t, 6, strings.Count(progress, "░"))
}

func TestFormatConvoyUpdate_ZeroTotal(t *testing.T) {
	embed := FormatConvoyUpdate(ConvoyUpdateEvent{
		ConvoyID:   "hq-cv-002",
		ConvoyName: "Empty",
		Status:     "queued",
		Message:    "m",
		Completed:  intPtr(3),
		Total:      intPtr(0),
	})

	require.Contains(t, embed.Fields[2].Value, "3/0 (0%)", "zero total must not divide")
	require.Equal(t, 0, strings.Count(embed.Fields[2].Value, "█"))
}

func TestFormatConvoyUpdate_ProgressOmittedWithoutBothCounts(t *testing.T) {
	embed := FormatConvoyUpdate(ConvoyUpdateEvent{
		ConvoyID:   "hq-cv-003",
		ConvoyName: "Partial",
		Status:     "open",
		Message:    "m",
		Completed:  intPtr(1), // total absent
	})
	require.Equal(t, []string{"Convoy ID", "Status"}, fieldNames(embed))
}

func TestFormatEscalation_Severities(t *testing.T) {
	for severity, emoji := range map[string]string{
		"low":      "ℹ️",
		"medium":   "⚠️",
		"high":     "🔴",
		"critical": "🚨",
	} {
		embed := FormatEscalation(EscalationEvent{
			From: "worker/1", Issue: "stuck", Severity: severity, Details: "d",
		})
		require.Equal(t, emoji+" "+strings.ToUpper(severity), embed.Fields[1].Value)
	}
}

func TestFormatEscalation_UnknownSeverityFallsBack(t *testing.T) {
	embed := FormatEscalation(EscalationEvent{From: "w", Issue: "i", Severity: "Unheard-Of", Details: "d"})
	require.Equal(t, "⚠️ UNHEARD-OF", embed.Fields[1].Value)
}

func TestFormatEscalation_RelatedBead(t *testing.T) {
	plain := FormatEscalation(EscalationEvent{From: "w", Issue: "i", Severity: "high", Details: "d"})
	require.Equal(t, []string{"From", "Severity"}, fieldNames(plain))

	withBead := FormatEscalation(EscalationEvent{From: "w", Issue: "i", Severity: "high", Details: "d", BeadID: "bd-9"})
	require.Equal(t, []string{"From", "Severity", "Related Bead"}, fieldNames(withBead))
	require.Equal(t, "`bd-9`", withBead.Fields[2].Value)
}

func TestFormatEscalation_TruncatesDetails(t *testing.T) {
	long := strings.Repeat("y", MaxDescriptionLen*2)
	embed := FormatEscalation(EscalationEvent{From: "w", Issue: "i", Severity: "low", Details: long})
	require.Len(t, embed.Description, MaxDescriptionLen)
	require.Equal(t, long[:MaxDescriptionLen], embed.Description)
}

func TestFormatHandoff(t *testing.T) {
	embed := FormatHandoff(HandoffEvent{From: "w/1", Subject: "shift end", Message: "context"})
	require.Equal(t, "🤝 Handoff: shift end", embed.Title)
	require.Equal(t, []string{"From"}, fieldNames(embed))

	hooked := FormatHandoff(HandoffEvent{From: "w/1", Subject: "s", Message: "m", HookedWork: "bd-77"})
	require.Equal(t, []string{"From", "Hooked Work"}, fieldNames(hooked))
}

func TestFormatHandoff_TruncatesMessage(t *testing.T) {
	long := strings.Repeat("z", MaxDescriptionLen+1)
	embed := FormatHandoff(HandoffEvent{From: "w", Subject: "s", Message: long})
	require.Len(t, embed.Description, MaxDescriptionLen)
}

func TestFormatCompletion(t *testing.T) {
	embed := FormatCompletion(CompletionEvent{
		Agent:     "worker/3",
		BeadID:    "bd-42",
		BeadTitle: "Wire the pumps",
		Summary:   "Done and tested",
		Time:      fixedTime,
	})

	require.Equal(t, "✅ Completed: Wire the pumps", embed.Title)
	require.Equal(t, "Done and tested", embed.Description, "summary is verbatim, not truncated")
	require.Equal(t, []string{"Agent", "Bead ID"}, fieldNames(embed))
	require.Equal(t, 0x57F287, embed.Color)
}

func TestFormatGeneric(t *testing.T) {
	embed := FormatGeneric(GenericEvent{Title: "Custom", Message: "m"})
	require.Equal(t, "Custom", embed.Title)
	require.Equal(t, Color(KindNudge), embed.Color, "generic defaults to the nudge color")
	require.Empty(t, embed.Fields)
	require.Nil(t, embed.Footer, "generic has a footer only when a rig is supplied")

	withRig := FormatGeneric(GenericEvent{Title: "t", Message: "m", Rig: "refinery"})
	require.Equal(t, "Rig: refinery", withRig.Footer.Text)

	withFields := FormatGeneric(GenericEvent{Title: "t", Message: "m", Fields: []Field{{Name: "K", Value: "V"}}})
	require.Equal(t, []string{"K"}, fieldNames(withFields))
}

func TestTruncate_MultibyteSafe(t *testing.T) {
	long := strings.Repeat("界", MaxDescriptionLen+10)
	got := truncate(long)
	require.Equal(t, MaxDescriptionLen, len([]rune(got)))
}

func TestProgressBar_Bounds(t *testing.T) {
	require.Equal(t, "[░░░░░░░░░░]", progressBar(0, 10))
	require.Equal(t, "[██████████]", progressBar(100, 10))
	require.Equal(t, "[██████████]", progressBar(150, 10), "overshoot clamps to full")
}
