// Package broker runs an optional in-process MQTT broker.
//
// Small installations can point their Thingy devices straight at the
// gateway instead of running a separate Mosquitto. The gateway's own MQTT
// client then connects to this broker over loopback like any other client.
package broker

import (
	"errors"
	"fmt"
	"log/slog"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/thingy-gateway/internal/infrastructure/config"
)

const listenerID = "thingy-tcp"

// ErrNotStarted is returned when the broker is used before Start.
var ErrNotStarted = errors.New("broker: not started")

// Broker wraps a mochi-mqtt server with a single TCP listener.
type Broker struct {
	server  *mochi.Server
	address string
	started bool
}

// New builds a broker from cfg. When credentials are configured, only that
// username/password pair (and loopback clients) may connect; otherwise any
// client is accepted.
func New(cfg config.EmbeddedBrokerConfig, creds config.MQTTAuthConfig, logger *slog.Logger) (*Broker, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("broker: address is required")
	}

	opts := &mochi.Options{InlineClient: true}
	if logger != nil {
		opts.Logger = logger.With("component", "broker")
	}
	server := mochi.New(opts)

	var err error
	if creds.Username == "" {
		err = server.AddHook(new(auth.AllowHook), nil)
	} else {
		err = server.AddHook(new(auth.Hook), &auth.Options{
			Ledger: &auth.Ledger{
				Auth: auth.AuthRules{
					{Username: auth.RString(creds.Username), Password: auth.RString(creds.Password), Allow: true},
					{Remote: "127.0.0.1:*", Allow: true},
				},
			},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("broker: adding auth hook: %w", err)
	}

	return &Broker{server: server, address: cfg.Address}, nil
}

// Start binds the listener and begins accepting clients. It returns once
// the listener is bound.
func (b *Broker) Start() error {
	tcp := listeners.NewTCP(listeners.Config{ID: listenerID, Address: b.address})
	if err := b.server.AddListener(tcp); err != nil {
		return fmt.Errorf("broker: listening on %s: %w", b.address, err)
	}
	if err := b.server.Serve(); err != nil {
		return fmt.Errorf("broker: serving: %w", err)
	}
	b.started = true
	return nil
}

// Address returns the configured listen address.
func (b *Broker) Address() string {
	return b.address
}

// Publish injects a message from the broker's inline client.
func (b *Broker) Publish(topic string, payload []byte, retain bool, qos byte) error {
	if !b.started {
		return ErrNotStarted
	}
	return b.server.Publish(topic, payload, retain, qos)
}

// Close stops the listener and disconnects all clients.
func (b *Broker) Close() error {
	if !b.started {
		return nil
	}
	b.started = false
	return b.server.Close()
}
