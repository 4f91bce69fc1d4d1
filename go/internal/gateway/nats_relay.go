package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const originHeader = "Fanzone-Origin"

// RelayConfig holds configuration for the cross-instance frame relay
type RelayConfig struct {
	URL           string        `env:"NATS_URL" envDefault:"nats://localhost:4222"`
	SubjectPrefix string        `env:"LIVE_RELAY_SUBJECT" envDefault:"live.frames"`
	InstanceID    string        `env:"INSTANCE_ID"`
	MaxReconnects int           `env:"NATS_MAX_RECONNECTS" envDefault:"-1"`
	ReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`
}

// NATSRelay mirrors live frames between server instances over core NATS.
// Each instance tags what it publishes and ignores its own messages.
type NATSRelay struct {
	nc     *nats.Conn
	sub    *nats.Subscription
	config RelayConfig
}

// NewNATSRelay connects to NATS
func NewNATSRelay(config RelayConfig) (*NATSRelay, error) {
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = "live.frames"
	}

	opts := []nats.Option{
		nats.Name("fanzone-" + config.InstanceID),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSRelay{nc: nc, config: config}, nil
}

func (r *NATSRelay) subject(key uuid.UUID) string {
	return r.config.SubjectPrefix + "." + key.String()
}

// Publish sends an encoded frame for key to the other instances
func (r *NATSRelay) Publish(_ context.Context, key uuid.UUID, frame []byte) error {
	msg := nats.NewMsg(r.subject(key))
	msg.Header.Set(originHeader, r.config.InstanceID)
	msg.Data = frame
	if err := r.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}

// Subscribe hands frames from other instances to apply
func (r *NATSRelay) Subscribe(apply func(key uuid.UUID, frame []byte)) error {
	sub, err := r.nc.Subscribe(r.config.SubjectPrefix+".*", func(msg *nats.Msg) {
		if msg.Header.Get(originHeader) == r.config.InstanceID {
			return
		}
		key, err := keyFromSubject(r.config.SubjectPrefix, msg.Subject)
		if err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("ignoring relayed frame")
			return
		}
		apply(key, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.config.SubjectPrefix, err)
	}
	r.sub = sub

	log.Info().
		Str("subject", r.config.SubjectPrefix+".*").
		Str("instance_id", r.config.InstanceID).
		Msg("live frame relay subscribed")
	return nil
}

// Close drains the subscription and the connection
func (r *NATSRelay) Close() error {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe relay")
		}
	}
	return r.nc.Drain()
}

func keyFromSubject(prefix, subject string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(subject, prefix+".")
	if !ok {
		return uuid.Nil, fmt.Errorf("subject %q outside prefix %q", subject, prefix)
	}
	key, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("subject %q: %w", subject, err)
	}
	return key, nil
}
