package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/towncrier/internal/channels"
	"github.com/zjrosen/towncrier/internal/notify"
)

type fakeRelay struct {
	sentChannel string
	sentMessage string
	sentRig     string
	sendErr     error

	notifiedKind string
	notifiedArgs notify.EventArgs
	notifyErr    error

	mappings map[string]channels.ChannelID
}

func (f *fakeRelay) SendMessage(_ context.Context, channelName, message, rig string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentChannel, f.sentMessage, f.sentRig = channelName, message, rig
	return nil
}

func (f *fakeRelay) NotifyEvent(_ context.Context, kind string, args notify.EventArgs) (*channels.Channel, error) {
	if f.notifyErr != nil {
		return nil, f.notifyErr
	}
	f.notifiedKind, f.notifiedArgs = kind, args
	rig := args.Rig
	if rig == "" {
		rig = "gastown"
	}
	return &channels.Channel{ID: 42, Name: "gt-" + rig}, nil
}

func (f *fakeRelay) ListRigChannels() map[string]channels.ChannelID {
	return f.mappings
}

func TestSendMessageTool(t *testing.T) {
	relay := &fakeRelay{}
	handler := handleSendMessage(relay)

	result, err := handler(context.Background(), json.RawMessage(`{"channel_name":"general","message":"hi","rig_name":"gastown"}`))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "Message sent to #general", result.Content[0].Text)
	require.Equal(t, "general", relay.sentChannel)
	require.Equal(t, "hi", relay.sentMessage)
	require.Equal(t, "gastown", relay.sentRig)
}

func TestSendMessageTool_MissingArgs(t *testing.T) {
	handler := handleSendMessage(&fakeRelay{})

	result, err := handler(context.Background(), json.RawMessage(`{"message":"hi"}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "channel_name")

	result, err = handler(context.Background(), json.RawMessage(`{"channel_name":"general"}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "message")
}

func TestSendMessageTool_RelayFailure(t *testing.T) {
	relay := &fakeRelay{sendErr: errors.New("channel not found")}
	handler := handleSendMessage(relay)

	result, err := handler(context.Background(), json.RawMessage(`{"channel_name":"x","message":"y"}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "channel not found")
}

func TestNotifySeerTool(t *testing.T) {
	relay := &fakeRelay{}
	handler := handleNotifySeer(relay)

	raw := json.RawMessage(`{"event_type":"escalation","from_agent":"crew-1","issue":"stuck","severity":"high","rig":"gastown"}`)
	result, err := handler(context.Background(), raw)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "Delivered escalation event to #gt-gastown", result.Content[0].Text)

	require.Equal(t, "escalation", relay.notifiedKind)
	require.Equal(t, "crew-1", relay.notifiedArgs.From)
	require.Equal(t, "stuck", relay.notifiedArgs.Issue)
	require.Equal(t, "high", relay.notifiedArgs.Severity)
}

func TestNotifySeerTool_MissingEventType(t *testing.T) {
	handler := handleNotifySeer(&fakeRelay{})

	result, err := handler(context.Background(), json.RawMessage(`{"message":"hello"}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "event_type")
}

func TestNotifySeerTool_RelayFailure(t *testing.T) {
	relay := &fakeRelay{notifyErr: errors.New("gateway down")}
	handler := handleNotifySeer(relay)

	result, err := handler(context.Background(), json.RawMessage(`{"event_type":"nudge"}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content[0].Text, "gateway down")
}

func TestListRigChannelsTool(t *testing.T) {
	relay := &fakeRelay{mappings: map[string]channels.ChannelID{
		"gastown": 111,
		"alpha":   222,
	}}
	handler := handleListRigChannels(relay)

	result, err := handler(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Equal(t, "2 rig channel(s)\nalpha: 222\ngastown: 111", result.Content[0].Text)

	structured, ok := result.StructuredContent.(map[string]any)
	require.True(t, ok)
	require.Contains(t, structured, "channels")
}

func TestRegisterRelayTools(t *testing.T) {
	s := NewServer("towncrier", "1.0.0")
	RegisterRelayTools(s, &fakeRelay{})

	result, rpcErr := s.handleToolsList(nil)
	require.Nil(t, rpcErr)
	list := result.(ToolsListResult)
	require.Len(t, list.Tools, 3)

	names := map[string]bool{}
	for _, tool := range list.Tools {
		names[tool.Name] = true
	}
	require.True(t, names["send_discord_message"])
	require.True(t, names["notify_seer"])
	require.True(t, names["list_rig_channels"])
}
