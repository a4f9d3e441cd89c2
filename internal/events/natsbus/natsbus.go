package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/rfidlock/doorkeeper/internal/events"
)

// Config mirrors the NATS_* settings.
type Config struct {
	URL    string
	Token  string
	Prefix string
	Name   string
}

// Bus publishes events as JSON on per-door and per-user subjects.
type Bus struct {
	conn   *nats.Conn
	prefix string
}

func Connect(cfg Config) (*Bus, error) {
	name := cfg.Name
	if name == "" {
		name = "doorkeeper"
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
	}

	// if token provided
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	return New(conn, cfg.Prefix), nil
}

func New(conn *nats.Conn, prefix string) *Bus {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "doorkeeper"
	}
	return &Bus{conn: conn, prefix: prefix}
}

func (b *Bus) Publish(_ context.Context, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subj := Subject(b.prefix, ev)
	if err := b.conn.Publish(subj, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subj, err)
	}
	return nil
}

// Close flushes buffered messages before closing the connection.
func (b *Bus) Close() {
	if b.conn == nil {
		return
	}
	_ = b.conn.Drain()
}

// Subject maps an event to its NATS subject:
//
//	<prefix>.access.<door_id>
//	<prefix>.keycard.<lock_user_id>
//	<prefix>.scan.<lock_user_id>
//	<prefix>.door.<door_id>.allowed
//
// A zero id is rendered as "unknown".
func Subject(prefix string, ev events.Event) string {
	switch ev.Kind {
	case events.KindAccess:
		return prefix + ".access." + token(ev.DoorID)
	case events.KindKeycard:
		return prefix + ".keycard." + token(ev.LockUserID)
	case events.KindScan:
		return prefix + ".scan." + token(ev.LockUserID)
	case events.KindDoorAllowed:
		return prefix + ".door." + token(ev.DoorID) + ".allowed"
	default:
		return prefix + "." + string(ev.Kind)
	}
}

func token(id int64) string {
	if id == 0 {
		return "unknown"
	}
	return strconv.FormatInt(id, 10)
}
