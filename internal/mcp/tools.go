package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/zjrosen/towncrier/internal/channels"
	"github.com/zjrosen/towncrier/internal/notify"
)

// Relay is the delivery surface the tools call into.
type Relay interface {
	SendMessage(ctx context.Context, channelName, message, rig string) error
	NotifyEvent(ctx context.Context, kind string, args notify.EventArgs) (*channels.Channel, error)
	ListRigChannels() map[string]channels.ChannelID
}

// ServerInstructions is sent to clients during initialization.
const ServerInstructions = `Gas Town notification relay. Use notify_seer to deliver
structured rig events, send_discord_message for plain text to a named channel,
and list_rig_channels to inspect the rig to channel mapping.`

// sendMessageArgs are the arguments for send_discord_message.
type sendMessageArgs struct {
	ChannelName string `json:"channel_name"`
	Message     string `json:"message"`
	RigName     string `json:"rig_name,omitempty"`
}

// notifyArgs adds the event kind to the flat formatter argument set.
type notifyArgs struct {
	EventType string `json:"event_type"`
	notify.EventArgs
}

// RegisterRelayTools registers the relay's tools on the server.
func RegisterRelayTools(s *Server, relay Relay) {
	s.RegisterTool(sendMessageTool(), handleSendMessage(relay))
	s.RegisterTool(notifySeerTool(), handleNotifySeer(relay))
	s.RegisterTool(listRigChannelsTool(), handleListRigChannels(relay))
}

func sendMessageTool() Tool {
	return Tool{
		Name:        "send_discord_message",
		Description: "Send a plain text message to a named Discord channel. When rig_name is given the message is prefixed with [rig_name].",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"channel_name": {Type: "string", Description: "Name of the destination channel"},
				"message":      {Type: "string", Description: "Message text to send"},
				"rig_name":     {Type: "string", Description: "Optional rig name prefixed to the message"},
			},
			Required: []string{"channel_name", "message"},
		},
	}
}

func handleSendMessage(relay Relay) ToolHandler {
	return func(ctx context.Context, raw json.RawMessage) (*ToolCallResult, error) {
		var args sendMessageArgs
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return ErrorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
		}
		if args.ChannelName == "" {
			return ErrorResult("channel_name is required"), nil
		}
		if args.Message == "" {
			return ErrorResult("message is required"), nil
		}

		if err := relay.SendMessage(ctx, args.ChannelName, args.Message, args.RigName); err != nil {
			return ErrorResult(fmt.Sprintf("failed to send message: %v", err)), nil
		}
		return SuccessResult(fmt.Sprintf("Message sent to #%s", args.ChannelName)), nil
	}
}

func notifySeerTool() Tool {
	return Tool{
		Name: "notify_seer",
		Description: "Deliver a Gas Town event as a rich notification to the rig's channel, " +
			"creating the channel when needed. Known event types: nudge, broadcast, mail, " +
			"convoy_update, escalation, handoff, completion. Unknown types are delivered " +
			"as generic notifications.",
		InputSchema: &InputSchema{
			Type: "object",
			Properties: map[string]*PropertySchema{
				"event_type":   {Type: "string", Description: "Event kind, case-insensitive"},
				"rig":          {Type: "string", Description: "Rig the event belongs to; defaults to the configured rig"},
				"from_agent":   {Type: "string", Description: "Sending agent"},
				"to_agent":     {Type: "string", Description: "Receiving agent"},
				"message":      {Type: "string", Description: "Event body"},
				"subject":      {Type: "string", Description: "Subject line for mail and handoff events"},
				"mail_id":      {Type: "string", Description: "Mail identifier"},
				"priority":     {Type: "string", Description: "Mail priority"},
				"convoy_id":    {Type: "string", Description: "Convoy identifier"},
				"convoy_name":  {Type: "string", Description: "Convoy display name"},
				"status":       {Type: "string", Description: "Convoy status"},
				"completed":    {Type: "integer", Description: "Completed convoy item count"},
				"total":        {Type: "integer", Description: "Total convoy item count"},
				"issue":        {Type: "string", Description: "Escalation issue summary"},
				"severity":     {Type: "string", Description: "Escalation severity: low, medium, high or critical"},
				"details":      {Type: "string", Description: "Escalation details"},
				"bead_id":      {Type: "string", Description: "Related bead identifier"},
				"hooked_work":  {Type: "string", Description: "Work hooked by a handoff"},
				"agent":        {Type: "string", Description: "Agent that completed the work"},
				"bead_title":   {Type: "string", Description: "Title of the completed bead"},
				"summary":      {Type: "string", Description: "Completion summary"},
				"target_scope": {Type: "string", Description: "Broadcast scope: workers or all"},
				"title":        {Type: "string", Description: "Title for generic events"},
				"timestamp":    {Type: "string", Description: "Event time, RFC 3339; defaults to now"},
			},
			Required: []string{"event_type"},
		},
	}
}

func handleNotifySeer(relay Relay) ToolHandler {
	return func(ctx context.Context, raw json.RawMessage) (*ToolCallResult, error) {
		var args notifyArgs
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return ErrorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
		}
		if args.EventType == "" {
			return ErrorResult("event_type is required"), nil
		}

		ch, err := relay.NotifyEvent(ctx, args.EventType, args.EventArgs)
		if err != nil {
			return ErrorResult(fmt.Sprintf("failed to deliver %s event: %v", args.EventType, err)), nil
		}
		return SuccessResult(fmt.Sprintf("Delivered %s event to #%s", args.EventType, ch.Name)), nil
	}
}

func listRigChannelsTool() Tool {
	return Tool{
		Name:        "list_rig_channels",
		Description: "List the rig name to Discord channel mapping currently known to the relay.",
		InputSchema: &InputSchema{Type: "object"},
	}
}

func handleListRigChannels(relay Relay) ToolHandler {
	return func(_ context.Context, _ json.RawMessage) (*ToolCallResult, error) {
		mappings := relay.ListRigChannels()

		rigs := make([]string, 0, len(mappings))
		for rig := range mappings {
			rigs = append(rigs, rig)
		}
		sort.Strings(rigs)

		var b strings.Builder
		fmt.Fprintf(&b, "%d rig channel(s)", len(rigs))
		for _, rig := range rigs {
			fmt.Fprintf(&b, "\n%s: %d", rig, mappings[rig])
		}

		return StructuredResult(b.String(), map[string]any{"channels": mappings}), nil
	}
}
