// Package channels resolves Gas Town rig names to Discord channels.
//
// The resolver owns the in-memory rig -> channel mapping and is the sole
// writer of its backing file. Resolution falls through three strategies:
// the cached mapping, an exact name search over the guild's text channels,
// and finally channel creation.
package channels

import (
	"context"
	"fmt"
	"sync"

	"github.com/zjrosen/towncrier/internal/log"
)

// ChannelID is a guild-scoped channel identifier. Persisted as a JSON
// integer; the Discord snowflake conversion happens at the transport edge.
type ChannelID int64

// Channel is a text-capable channel in the guild directory.
type Channel struct {
	ID   ChannelID
	Name string
}

// Directory abstracts the guild's channel operations. Absent channels are
// reported as nil, not as errors; errors mean the transport itself failed.
type Directory interface {
	ChannelByID(ctx context.Context, id ChannelID) (*Channel, error)
	TextChannels(ctx context.Context) ([]Channel, error)
	CreateTextChannel(ctx context.Context, name, topic string) (*Channel, error)
	SendText(ctx context.Context, id ChannelID, content string) error
	DeleteChannel(ctx context.Context, id ChannelID) error
}

// Resolver maps rig names to destination channels, creating channels on
// demand. A single mutex serializes resolution: the HTTP tool transport can
// carry concurrent calls, and overlapping resolution of the same rig would
// double-create its channel.
type Resolver struct {
	dir   Directory
	store Store

	mu       sync.Mutex
	mappings map[string]ChannelID
}

// NewResolver creates a resolver over the given guild directory. The
// persisted mapping is loaded once here; it stays advisory from then on,
// with the in-memory state as the source of truth.
func NewResolver(dir Directory, store Store) *Resolver {
	mappings := store.Load()
	log.Info(log.CatChannels, "Loaded rig mappings", "count", len(mappings))
	return &Resolver{
		dir:      dir,
		store:    store,
		mappings: mappings,
	}
}

// Resolve returns the channel for a rig, walking the cached mapping, then
// an exact name match over the guild's text channels, then creating the
// channel. Stale mappings (channel deleted externally) are evicted and the
// eviction persisted before falling through.
func (r *Resolver) Resolve(ctx context.Context, rig string) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.mappings[rig]; ok {
		ch, err := r.dir.ChannelByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("looking up channel %d: %w", id, err)
		}
		if ch != nil {
			return ch, nil
		}
		log.Info(log.CatChannels, "Mapped channel gone, evicting", "rig", rig, "channel", id)
		delete(r.mappings, rig)
		r.persist()
	}

	name := Sanitize(rig)
	existing, err := r.dir.TextChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing text channels: %w", err)
	}
	for _, ch := range existing {
		if ch.Name == name {
			r.mappings[rig] = ch.ID
			r.persist()
			return &Channel{ID: ch.ID, Name: ch.Name}, nil
		}
	}

	return r.create(ctx, rig, name)
}

// create makes a new channel for the rig, records the mapping, and posts
// the welcome message. Callers must hold r.mu.
func (r *Resolver) create(ctx context.Context, rig, name string) (*Channel, error) {
	topic := fmt.Sprintf("Notifications from Gas Town rig: %s", rig)
	ch, err := r.dir.CreateTextChannel(ctx, name, topic)
	if err != nil {
		return nil, fmt.Errorf("creating channel %q: %w", name, err)
	}
	log.Info(log.CatChannels, "Created rig channel", "rig", rig, "channel", ch.ID, "name", name)

	r.mappings[rig] = ch.ID
	r.persist()

	welcome := fmt.Sprintf("🚂 **Gas Town Rig Channel Created**\nThis channel receives notifications from the `%s` rig.", rig)
	if err := r.dir.SendText(ctx, ch.ID, welcome); err != nil {
		return nil, fmt.Errorf("sending welcome message: %w", err)
	}

	return ch, nil
}

// GetChannelID returns the mapped channel ID for a rig without resolving
// or creating anything.
func (r *Resolver) GetChannelID(rig string) (ChannelID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.mappings[rig]
	return id, ok
}

// ListMappings returns a copy of the rig -> channel mapping. Mutating the
// returned map does not affect the resolver.
func (r *Resolver) ListMappings() map[string]ChannelID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ChannelID, len(r.mappings))
	for rig, id := range r.mappings {
		out[rig] = id
	}
	return out
}

// DeleteChannel removes a rig's channel and mapping. Returns false with no
// effect when no mapping exists. The underlying channel delete is
// best-effort: a channel already gone from the directory is not an error.
func (r *Resolver) DeleteChannel(ctx context.Context, rig string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.mappings[rig]
	if !ok {
		return false, nil
	}

	ch, err := r.dir.ChannelByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("looking up channel %d: %w", id, err)
	}
	if ch != nil {
		if err := r.dir.DeleteChannel(ctx, id); err != nil {
			return false, fmt.Errorf("deleting channel %d: %w", id, err)
		}
	}

	delete(r.mappings, rig)
	r.persist()
	return true, nil
}

// persist rewrites the backing file. Write failures are logged and do not
// roll back the in-memory mapping: the file is a cache, memory is truth.
// Callers must hold r.mu.
func (r *Resolver) persist() {
	snapshot := make(map[string]ChannelID, len(r.mappings))
	for rig, id := range r.mappings {
		snapshot[rig] = id
	}
	if err := r.store.Save(snapshot); err != nil {
		log.ErrorErr(log.CatStore, "Failed to persist rig mappings", err)
	}
}
