package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/towncrier/internal/channels"
	"github.com/zjrosen/towncrier/internal/history"
	"github.com/zjrosen/towncrier/internal/notify"
)

type sentText struct {
	id      channels.ChannelID
	content string
}

type sentEmbed struct {
	id    channels.ChannelID
	embed notify.Embed
}

// fakeTransport implements Transport in memory.
type fakeTransport struct {
	channels  []channels.Channel
	nextID    channels.ChannelID
	texts     []sentText
	embeds    []sentEmbed
	listCalls int

	listErr  error
	sendErr  error
	embedErr error
}

func newFakeTransport(chs ...channels.Channel) *fakeTransport {
	return &fakeTransport{channels: chs, nextID: 1000}
}

func (f *fakeTransport) ChannelByID(_ context.Context, id channels.ChannelID) (*channels.Channel, error) {
	for _, ch := range f.channels {
		if ch.ID == id {
			c := ch
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeTransport) TextChannels(_ context.Context) ([]channels.Channel, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]channels.Channel(nil), f.channels...), nil
}

func (f *fakeTransport) CreateTextChannel(_ context.Context, name, _ string) (*channels.Channel, error) {
	f.nextID++
	ch := channels.Channel{ID: f.nextID, Name: name}
	f.channels = append(f.channels, ch)
	return &ch, nil
}

func (f *fakeTransport) SendText(_ context.Context, id channels.ChannelID, content string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, sentText{id: id, content: content})
	return nil
}

func (f *fakeTransport) SendEmbed(_ context.Context, id channels.ChannelID, embed notify.Embed) error {
	if f.embedErr != nil {
		return f.embedErr
	}
	f.embeds = append(f.embeds, sentEmbed{id: id, embed: embed})
	return nil
}

func (f *fakeTransport) DeleteChannel(_ context.Context, id channels.ChannelID) error {
	for i, ch := range f.channels {
		if ch.ID == id {
			f.channels = append(f.channels[:i], f.channels[i+1:]...)
			return nil
		}
	}
	return nil
}

type memStore struct {
	mappings map[string]channels.ChannelID
}

func (m *memStore) Load() map[string]channels.ChannelID {
	if m.mappings == nil {
		return map[string]channels.ChannelID{}
	}
	return m.mappings
}

func (m *memStore) Save(mappings map[string]channels.ChannelID) error {
	m.mappings = mappings
	return nil
}

type memRecorder struct {
	deliveries []history.Delivery
	err        error
}

func (m *memRecorder) Record(d *history.Delivery) error {
	if m.err != nil {
		return m.err
	}
	m.deliveries = append(m.deliveries, *d)
	return nil
}

func newTestService(t *testing.T, transport *fakeTransport, cfg Config) *Service {
	t.Helper()
	resolver := channels.NewResolver(transport, &memStore{})
	return NewService(transport, resolver, cfg)
}

func TestSendMessage_PrefixesRig(t *testing.T) {
	transport := newFakeTransport(channels.Channel{ID: 1, Name: "general"})
	svc := newTestService(t, transport, Config{})

	require.NoError(t, svc.SendMessage(context.Background(), "general", "hello", "gastown"))

	require.Len(t, transport.texts, 1)
	require.Equal(t, channels.ChannelID(1), transport.texts[0].id)
	require.Equal(t, "[gastown] hello", transport.texts[0].content)
}

func TestSendMessage_NoRigNoPrefix(t *testing.T) {
	transport := newFakeTransport(channels.Channel{ID: 1, Name: "general"})
	svc := newTestService(t, transport, Config{})

	require.NoError(t, svc.SendMessage(context.Background(), "general", "hello", ""))
	require.Equal(t, "hello", transport.texts[0].content)
}

func TestSendMessage_UnknownChannel(t *testing.T) {
	transport := newFakeTransport()
	svc := newTestService(t, transport, Config{})

	err := svc.SendMessage(context.Background(), "nowhere", "hello", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestSendMessage_CachesNameLookup(t *testing.T) {
	transport := newFakeTransport(channels.Channel{ID: 1, Name: "general"})
	svc := newTestService(t, transport, Config{CacheEnabled: true, ChannelTTL: time.Minute})

	require.NoError(t, svc.SendMessage(context.Background(), "general", "one", ""))
	require.NoError(t, svc.SendMessage(context.Background(), "general", "two", ""))

	require.Equal(t, 1, transport.listCalls)
}

func TestSendMessage_SendFailureInvalidatesCache(t *testing.T) {
	transport := newFakeTransport(channels.Channel{ID: 1, Name: "general"})
	svc := newTestService(t, transport, Config{CacheEnabled: true, ChannelTTL: time.Minute})

	require.NoError(t, svc.SendMessage(context.Background(), "general", "one", ""))

	transport.sendErr = errors.New("channel gone")
	require.Error(t, svc.SendMessage(context.Background(), "general", "two", ""))

	transport.sendErr = nil
	require.NoError(t, svc.SendMessage(context.Background(), "general", "three", ""))
	require.Equal(t, 2, transport.listCalls)
}

func TestNotifyEvent_CreatesRigChannel(t *testing.T) {
	transport := newFakeTransport()
	svc := newTestService(t, transport, Config{})

	ch, err := svc.NotifyEvent(context.Background(), "nudge", notify.EventArgs{
		From: "mayor", To: "crew-1", Message: "wake up", Rig: "gastown",
	})
	require.NoError(t, err)
	require.Equal(t, "gt-gastown", ch.Name)

	require.Len(t, transport.embeds, 1)
	require.Equal(t, ch.ID, transport.embeds[0].id)
	require.Equal(t, "💬 Agent Nudge", transport.embeds[0].embed.Title)
}

func TestNotifyEvent_DefaultRig(t *testing.T) {
	transport := newFakeTransport()
	svc := newTestService(t, transport, Config{DefaultRig: "gastown"})

	ch, err := svc.NotifyEvent(context.Background(), "broadcast", notify.EventArgs{
		From: "mayor", Message: "all hands",
	})
	require.NoError(t, err)
	require.Equal(t, "gt-gastown", ch.Name)

	footer := transport.embeds[0].embed.Footer
	require.NotNil(t, footer)
	require.Equal(t, "Rig: gastown", footer.Text)
}

func TestNotifyEvent_DeliveryFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.embedErr = errors.New("rate limited")
	svc := newTestService(t, transport, Config{DefaultRig: "gastown"})

	_, err := svc.NotifyEvent(context.Background(), "nudge", notify.EventArgs{Message: "m"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rate limited")
}

func TestNotifyEvent_RecordsDelivery(t *testing.T) {
	transport := newFakeTransport()
	recorder := &memRecorder{}
	svc := newTestService(t, transport, Config{DefaultRig: "gastown", Recorder: recorder})

	ch, err := svc.NotifyEvent(context.Background(), "escalation", notify.EventArgs{
		From: "crew-1", Issue: "stuck", Severity: "high",
	})
	require.NoError(t, err)

	require.Len(t, recorder.deliveries, 1)
	d := recorder.deliveries[0]
	require.Equal(t, "escalation", d.Kind)
	require.Equal(t, "gastown", d.Rig)
	require.Equal(t, int64(ch.ID), d.ChannelID)
	require.Equal(t, "🚨 Escalation: stuck", d.Title)
}

func TestNotifyEvent_RecorderFailureDoesNotBlock(t *testing.T) {
	transport := newFakeTransport()
	recorder := &memRecorder{err: errors.New("disk full")}
	svc := newTestService(t, transport, Config{DefaultRig: "gastown", Recorder: recorder})

	_, err := svc.NotifyEvent(context.Background(), "nudge", notify.EventArgs{Message: "m"})
	require.NoError(t, err)
	require.Len(t, transport.embeds, 1)
}

func TestListRigChannels(t *testing.T) {
	transport := newFakeTransport()
	svc := newTestService(t, transport, Config{})

	_, err := svc.NotifyEvent(context.Background(), "nudge", notify.EventArgs{Rig: "alpha", Message: "m"})
	require.NoError(t, err)

	mappings := svc.ListRigChannels()
	require.Len(t, mappings, 1)
	require.Contains(t, mappings, "alpha")
}
