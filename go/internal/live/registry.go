package live

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GlobalChannel keys the site-wide chat channel in the registry.
var GlobalChannel = uuid.Nil

// Subscriber receives encoded frames for a channel. Deliver must not block;
// it returns false when the subscriber cannot take another frame.
type Subscriber interface {
	ID() string
	Deliver(frame []byte) bool
	Close()
}

// Registry is the process-wide table of subscribers keyed by game id.
type Registry struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]map[string]Subscriber
}

// Stats is a point-in-time view of the registry
type Stats struct {
	TotalSubscribers int            `json:"total_subscribers"`
	ActiveChannels   int            `json:"active_channels"`
	Channels         map[string]int `json:"channels"`
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[uuid.UUID]map[string]Subscriber)}
}

// Subscribe adds sub to the channel. Subscribing twice is a no-op.
func (r *Registry) Subscribe(key uuid.UUID, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.channels[key]
	if subs == nil {
		subs = make(map[string]Subscriber)
		r.channels[key] = subs
	}
	subs[sub.ID()] = sub

	log.Debug().
		Str("channel", key.String()).
		Str("subscriber_id", sub.ID()).
		Int("subscribers", len(subs)).
		Msg("subscriber joined")
}

// Unsubscribe removes sub and reports whether it was present.
func (r *Registry) Unsubscribe(key uuid.UUID, sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(key, sub.ID())
}

func (r *Registry) removeLocked(key uuid.UUID, id string) bool {
	subs, ok := r.channels[key]
	if !ok {
		return false
	}
	if _, ok := subs[id]; !ok {
		return false
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(r.channels, key)
	}
	return true
}

// Count returns the number of subscribers on a channel
func (r *Registry) Count(key uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[key])
}

// Broadcast encodes frame once and hands it to every subscriber except exclude.
func (r *Registry) Broadcast(key uuid.UUID, frame Frame, exclude Subscriber) int {
	data, err := frame.Marshal()
	if err != nil {
		log.Error().Err(err).Str("frame_type", string(frame.Type)).Msg("failed to marshal frame for broadcast")
		return 0
	}
	return r.BroadcastRaw(key, data, exclude)
}

// BroadcastRaw fans an already-encoded frame out without blocking. A
// subscriber that cannot accept the frame is closed and dropped.
func (r *Registry) BroadcastRaw(key uuid.UUID, data []byte, exclude Subscriber) int {
	excludeID := ""
	if exclude != nil {
		excludeID = exclude.ID()
	}

	r.mu.RLock()
	targets := make([]Subscriber, 0, len(r.channels[key]))
	for id, sub := range r.channels[key] {
		if id == excludeID {
			continue
		}
		targets = append(targets, sub)
	}
	r.mu.RUnlock()

	delivered := 0
	var evicted []Subscriber
	for _, sub := range targets {
		if sub.Deliver(data) {
			delivered++
			continue
		}
		evicted = append(evicted, sub)
	}

	if len(evicted) > 0 {
		r.mu.Lock()
		for _, sub := range evicted {
			r.removeLocked(key, sub.ID())
		}
		r.mu.Unlock()

		for _, sub := range evicted {
			log.Warn().
				Str("channel", key.String()).
				Str("subscriber_id", sub.ID()).
				Msg("subscriber send queue full, evicting")
			sub.Close()
		}
	}
	return delivered
}

// Stats returns subscriber counts per channel
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{Channels: make(map[string]int, len(r.channels))}
	for key, subs := range r.channels {
		stats.TotalSubscribers += len(subs)
		stats.Channels[key.String()] = len(subs)
	}
	stats.ActiveChannels = len(r.channels)
	return stats
}
