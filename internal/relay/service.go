// Package relay composes the event formatter, the rig channel resolver, and
// the Discord transport into the delivery pipeline the MCP tools call.
package relay

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/towncrier/internal/cachemanager"
	"github.com/zjrosen/towncrier/internal/channels"
	"github.com/zjrosen/towncrier/internal/history"
	"github.com/zjrosen/towncrier/internal/log"
	"github.com/zjrosen/towncrier/internal/notify"
)

// Transport is the guild directory plus rich message delivery.
type Transport interface {
	channels.Directory
	SendEmbed(ctx context.Context, id channels.ChannelID, embed notify.Embed) error
}

// Recorder logs completed deliveries. Recording failures never fail a
// delivery.
type Recorder interface {
	Record(d *history.Delivery) error
}

// Config carries the relay's tunables.
type Config struct {
	DefaultRig   string
	CacheEnabled bool
	ChannelTTL   time.Duration
	Recorder     Recorder
	Tracer       trace.Tracer
}

// Service routes formatted events and plain messages into guild channels.
type Service struct {
	transport  Transport
	resolver   *channels.Resolver
	defaultRig string
	channelTTL time.Duration
	recorder   Recorder
	tracer     trace.Tracer

	byName *cachemanager.ReadThroughCache[string, channels.ChannelID, string]
}

// NewService wires the relay over the given transport and resolver.
func NewService(transport Transport, resolver *channels.Resolver, cfg Config) *Service {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("relay")
	}
	ttl := cfg.ChannelTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	s := &Service{
		transport:  transport,
		resolver:   resolver,
		defaultRig: cfg.DefaultRig,
		channelTTL: ttl,
		recorder:   cfg.Recorder,
		tracer:     tracer,
	}
	s.byName = cachemanager.NewReadThroughCache[string, channels.ChannelID, string](
		cachemanager.NewInMemoryCacheManager[string, channels.ChannelID]("channel-name", ttl, 5*time.Minute),
		s.lookupChannelByName,
		!cfg.CacheEnabled,
	)
	return s
}

// SendMessage delivers a plain text message to a named channel. When a rig
// is given the message is prefixed with "[rig] ".
func (s *Service) SendMessage(ctx context.Context, channelName, message, rig string) error {
	ctx, span := s.tracer.Start(ctx, "relay.send_message", trace.WithAttributes(
		attribute.String("channel.name", channelName),
		attribute.String("rig", rig),
	))
	defer span.End()

	id, err := s.byName.Get(ctx, channelName, channelName, s.channelTTL)
	if err != nil {
		return err
	}

	content := message
	if rig != "" {
		content = fmt.Sprintf("[%s] %s", rig, message)
	}

	if err := s.transport.SendText(ctx, id, content); err != nil {
		// The cached id may point at a deleted channel.
		s.byName.Invalidate(ctx, channelName)
		return err
	}
	log.Info(log.CatDiscord, "Sent message", "channel", channelName, "rig", rig)
	return nil
}

// NotifyEvent formats a Gas Town event and delivers it to the rig's channel,
// creating the channel when needed. It returns the destination channel.
func (s *Service) NotifyEvent(ctx context.Context, kind string, args notify.EventArgs) (*channels.Channel, error) {
	ctx, span := s.tracer.Start(ctx, "relay.notify_event", trace.WithAttributes(
		attribute.String("event.kind", kind),
		attribute.String("rig", args.Rig),
	))
	defer span.End()

	rig := args.Rig
	if rig == "" {
		rig = s.defaultRig
	}
	args.Rig = rig

	embed := notify.FormatEvent(kind, args)

	ch, err := s.resolver.Resolve(ctx, rig)
	if err != nil {
		return nil, fmt.Errorf("resolving channel for rig %q: %w", rig, err)
	}

	if err := s.transport.SendEmbed(ctx, ch.ID, embed); err != nil {
		return nil, fmt.Errorf("delivering %s event to #%s: %w", kind, ch.Name, err)
	}
	log.Info(log.CatNotify, "Delivered event", "kind", kind, "rig", rig, "channel", ch.Name)

	s.record(kind, rig, ch.ID, embed.Title)
	return ch, nil
}

// ListRigChannels reports the current rig to channel mapping.
func (s *Service) ListRigChannels() map[string]channels.ChannelID {
	return s.resolver.ListMappings()
}

func (s *Service) lookupChannelByName(ctx context.Context, name string) (channels.ChannelID, error) {
	all, err := s.transport.TextChannels(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing channels: %w", err)
	}
	for _, ch := range all {
		if ch.Name == name {
			return ch.ID, nil
		}
	}
	return 0, fmt.Errorf("channel %q not found in guild", name)
}

func (s *Service) record(kind, rig string, id channels.ChannelID, title string) {
	if s.recorder == nil {
		return
	}
	d := history.Delivery{Kind: kind, Rig: rig, ChannelID: int64(id), Title: title}
	if err := s.recorder.Record(&d); err != nil {
		log.ErrorErr(log.CatHistory, "Failed to record delivery", err, "kind", kind, "rig", rig)
	}
}
