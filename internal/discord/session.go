// Package discord adapts a Discord gateway session to the channel directory
// and message transport the relay works against. Snowflake string handling
// stays inside this package; everything above it sees int64 channel IDs.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zjrosen/towncrier/internal/channels"
	"github.com/zjrosen/towncrier/internal/log"
	"github.com/zjrosen/towncrier/internal/notify"
)

// readyTimeout bounds how long Open waits for the gateway READY event.
const readyTimeout = 30 * time.Second

// Session wraps a discordgo session scoped to a single guild.
type Session struct {
	s       *discordgo.Session
	guildID string
	ready   chan struct{}
}

// New creates a session for the given bot token and guild. The gateway
// connection is not opened until Open is called.
func New(token, guildID string) (*Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds

	sess := &Session{s: s, guildID: guildID, ready: make(chan struct{})}
	s.AddHandlerOnce(func(_ *discordgo.Session, r *discordgo.Ready) {
		log.Info(log.CatDiscord, "Gateway ready", "user", r.User.Username, "guild", guildID)
		close(sess.ready)
	})
	return sess, nil
}

// Open connects to the gateway and waits until the session is ready.
func (s *Session) Open(ctx context.Context) error {
	if err := s.s.Open(); err != nil {
		return fmt.Errorf("opening gateway connection: %w", err)
	}
	select {
	case <-s.ready:
		return nil
	case <-time.After(readyTimeout):
		_ = s.s.Close()
		return errors.New("timed out waiting for gateway ready")
	case <-ctx.Done():
		_ = s.s.Close()
		return ctx.Err()
	}
}

// Close shuts down the gateway connection.
func (s *Session) Close() error {
	return s.s.Close()
}

// ChannelByID looks up a channel. Unknown channels and channels that are
// not guild text channels both return nil, not an error, so the resolver
// treats a mapping pointing at either as stale and evicts it.
func (s *Session) ChannelByID(ctx context.Context, id channels.ChannelID) (*channels.Channel, error) {
	ch, err := s.s.Channel(formatID(id), discordgo.WithContext(ctx))
	if err != nil {
		if isUnknownChannel(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching channel %d: %w", id, err)
	}
	return toTextChannel(ch)
}

// TextChannels lists the guild's text channels.
func (s *Session) TextChannels(ctx context.Context) ([]channels.Channel, error) {
	guildChannels, err := s.s.GuildChannels(s.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("listing guild channels: %w", err)
	}
	out := make([]channels.Channel, 0, len(guildChannels))
	for _, ch := range guildChannels {
		converted, err := toTextChannel(ch)
		if err != nil {
			return nil, err
		}
		if converted == nil {
			continue
		}
		out = append(out, *converted)
	}
	return out, nil
}

// CreateTextChannel creates a guild text channel with the given topic.
func (s *Session) CreateTextChannel(ctx context.Context, name, topic string) (*channels.Channel, error) {
	ch, err := s.s.GuildChannelCreateComplex(s.guildID, discordgo.GuildChannelCreateData{
		Name:  name,
		Type:  discordgo.ChannelTypeGuildText,
		Topic: topic,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating channel %q: %w", name, err)
	}
	return toChannel(ch)
}

// SendText sends a plain text message to a channel.
func (s *Session) SendText(ctx context.Context, id channels.ChannelID, content string) error {
	if _, err := s.s.ChannelMessageSend(formatID(id), content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending message to channel %d: %w", id, err)
	}
	return nil
}

// SendEmbed delivers a rich message to a channel.
func (s *Session) SendEmbed(ctx context.Context, id channels.ChannelID, embed notify.Embed) error {
	if _, err := s.s.ChannelMessageSendEmbed(formatID(id), toMessageEmbed(embed), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending embed to channel %d: %w", id, err)
	}
	return nil
}

// DeleteChannel removes a channel. Already-deleted channels are not an error.
func (s *Session) DeleteChannel(ctx context.Context, id channels.ChannelID) error {
	if _, err := s.s.ChannelDelete(formatID(id), discordgo.WithContext(ctx)); err != nil {
		if isUnknownChannel(err) {
			return nil
		}
		return fmt.Errorf("deleting channel %d: %w", id, err)
	}
	return nil
}

// toTextChannel converts a guild text channel, and maps every other channel
// type (voice, category, thread) to nil so callers see it as absent.
func toTextChannel(ch *discordgo.Channel) (*channels.Channel, error) {
	if ch.Type != discordgo.ChannelTypeGuildText {
		return nil, nil
	}
	return toChannel(ch)
}

func toChannel(ch *discordgo.Channel) (*channels.Channel, error) {
	id, err := parseID(ch.ID)
	if err != nil {
		return nil, err
	}
	return &channels.Channel{ID: id, Name: ch.Name}, nil
}

func parseID(snowflake string) (channels.ChannelID, error) {
	id, err := strconv.ParseInt(snowflake, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing channel id %q: %w", snowflake, err)
	}
	return channels.ChannelID(id), nil
}

func formatID(id channels.ChannelID) string {
	return strconv.FormatInt(int64(id), 10)
}

func isUnknownChannel(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	return restErr.Message != nil && restErr.Message.Code == discordgo.ErrCodeUnknownChannel
}

// toMessageEmbed converts the wire-neutral embed into discordgo's shape.
func toMessageEmbed(e notify.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
		Timestamp:   e.Timestamp,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if e.Footer != nil {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer.Text}
	}
	return out
}
