package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/fanzone/go/internal/apperrors"
)

type ListenerConfig struct {
	NotifyChannel    string        `env:"OUTBOX_NOTIFY_CHANNEL" envDefault:"live_outbox_events"`
	FallbackInterval time.Duration `env:"OUTBOX_FALLBACK_INTERVAL" envDefault:"30s"`
	MaxRetries       int           `env:"OUTBOX_MAX_RETRIES" envDefault:"5"`
	RetryDelay       time.Duration `env:"OUTBOX_RETRY_DELAY" envDefault:"200ms"`
	PingInterval     time.Duration `env:"OUTBOX_PING_INTERVAL" envDefault:"90s"`
	BatchSize        int32         `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel:    "live_outbox_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Store is the outbox table as the listener sees it
type Store interface {
	FetchByID(ctx context.Context, id uuid.UUID) (*Event, error)
	FetchUnsent(ctx context.Context, limit int32) ([]Event, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// Publisher delivers an outbox event downstream
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Notifications is the LISTEN side of a Postgres connection. *pq.Listener
// satisfies it.
type Notifications interface {
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

// Listener publishes outbox rows as soon as Postgres notifies about them and
// sweeps for anything missed on a fallback interval.
type Listener struct {
	store     Store
	notes     Notifications
	publisher Publisher
	cfg       ListenerConfig
	clock     clockwork.Clock
}

// ListenPostgres opens a pq.Listener on cfg.NotifyChannel
func ListenPostgres(dsn string, cfg ListenerConfig) (*pq.Listener, error) {
	l := pq.NewListener(
		dsn,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")
	return l, nil
}

func NewListener(store Store, notes Notifications, publisher Publisher, cfg ListenerConfig, clock clockwork.Clock) *Listener {
	return &Listener{
		store:     store,
		notes:     notes,
		publisher: publisher,
		cfg:       cfg,
		clock:     clock,
	}
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("listener started")

	pingTicker := l.clock.NewTicker(l.cfg.PingInterval)
	fallbackTicker := l.clock.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// rows written while no relay was running
	if _, err := l.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process backlog")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("listener shutting down")
			return l.notes.Close()
		case note := <-l.notes.NotificationChannel():
			if note == nil {
				// connection was re-established; notifications may have been lost
				if _, err := l.processUnsent(ctx); err != nil {
					log.Error().Err(err).Msg("failed to process unsent events after reconnect")
				}
				continue
			}
			if err := l.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-fallbackTicker.Chan():
			if _, err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.Chan():
			if err := l.notes.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// handleNotification publishes the outbox row whose id is the notification
// payload. A row already marked sent by the fallback sweep is skipped.
func (l *Listener) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("invalid event ID in notification: %w", err)
	}

	event, err := l.store.FetchByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			log.Debug().Str("event_id", id.String()).Msg("outbox event already sent")
			return nil
		}
		return fmt.Errorf("failed to fetch outbox event: %w", err)
	}

	return l.deliver(ctx, *event)
}

// processUnsent publishes one batch of unsent rows, oldest first, and
// returns how many were delivered.
func (l *Listener) processUnsent(ctx context.Context) (int, error) {
	unsent, err := l.store.FetchUnsent(ctx, l.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch unsent outbox events: %w", err)
	}

	delivered := 0
	for _, event := range unsent {
		if err := l.deliver(ctx, event); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to deliver event")
			continue
		}
		delivered++
	}
	if delivered > 0 {
		log.Info().Int("delivered", delivered).Int("fetched", len(unsent)).Msg("fallback sweep delivered events")
	}
	return delivered, nil
}

func (l *Listener) deliver(ctx context.Context, event Event) error {
	if err := l.publishWithRetry(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if err := l.store.MarkSent(ctx, event.ID); err != nil {
		return err
	}

	log.Debug().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("aggregate_id", event.AggregateID.String()).
		Msg("published and marked event as sent")
	return nil
}

// publishWithRetry backs off linearly between attempts.
func (l *Listener) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-l.clock.After(delay):
			}
		}

		if err := l.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("failed to publish, retrying")
			continue
		}

		if attempt > 0 {
			log.Info().
				Int("attempt", attempt+1).
				Str("event_id", event.ID.String()).
				Msg("publish succeeded after retry")
		}
		return nil
	}

	return fmt.Errorf("publish failed after %d attempts: %w", l.cfg.MaxRetries+1, lastErr)
}
