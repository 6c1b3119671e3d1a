package notify

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/voxkey-labs/voxkey/internal/config"
	"github.com/voxkey-labs/voxkey/internal/protocol"
)

// Notifier is the one-way, payload-free wake-up channel between the daemon
// and the keyboard client. Delivery is best-effort: posting when nobody
// listens is not an error, and receivers must reconcile against the shared
// store on their own lifecycle events.
type Notifier struct {
	conn *nats.Conn
	log  *slog.Logger
	mu   sync.Mutex
	subs map[protocol.Event]*nats.Subscription
}

// Connect dials the bus and returns a notifier bound to it.
func Connect(cfg config.BusConfig, name string, log *slog.Logger) (*Notifier, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}

	options := []nats.Option{
		nats.Name(name),
		nats.Timeout(time.Duration(cfg.ConnectTimeout) * time.Millisecond),
	}
	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}
	if cfg.TLSInsecure {
		options = append(options, nats.Secure(&tls.Config{InsecureSkipVerify: true}))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to notifier bus", slog.String("servers", url))

	return &Notifier{
		conn: conn,
		log:  log,
		subs: make(map[protocol.Event]*nats.Subscription),
	}, nil
}

// Close drains subscriptions and closes the connection.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	for event, sub := range n.subs {
		_ = sub.Drain()
		delete(n.subs, event)
	}
	n.mu.Unlock()
	n.conn.Drain()
	n.conn.Close()
}

// Healthy reports whether the bus connection is up.
func (n *Notifier) Healthy() bool {
	return n != nil && n.conn != nil && n.conn.Status() == nats.CONNECTED
}

// Post publishes event with no payload. Fire-and-forget: no delivery
// confirmation, and no error when no observer exists.
func (n *Notifier) Post(event protocol.Event) error {
	if !event.Valid() {
		return fmt.Errorf("unknown event %q", event)
	}
	if err := n.conn.Publish(event.Subject(), nil); err != nil {
		return fmt.Errorf("post %s: %w", event, err)
	}
	return nil
}

// Observe registers handler for event. At most one handler per event per
// process; a later registration replaces the earlier one.
func (n *Notifier) Observe(event protocol.Event, handler func()) error {
	if !event.Valid() {
		return fmt.Errorf("unknown event %q", event)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if prior, ok := n.subs[event]; ok {
		_ = prior.Drain()
		delete(n.subs, event)
	}

	sub, err := n.conn.Subscribe(event.Subject(), func(*nats.Msg) {
		handler()
	})
	if err != nil {
		return fmt.Errorf("observe %s: %w", event, err)
	}
	n.subs[event] = sub
	return nil
}
