package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes every event to a NATS subject so external
// dashboards can follow a run live. Publish failures are dropped; the
// JSONL log remains authoritative.
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

// NewNATSSink connects to a NATS server and returns a publishing sink.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("kestrel-events"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

// Emit publishes the event as JSON.
func (n *NATSSink) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	n.conn.Publish(n.subject, data)
}

// Close flushes pending publishes and drops the connection.
func (n *NATSSink) Close() error {
	if err := n.conn.Flush(); err != nil {
		n.conn.Close()
		return err
	}
	n.conn.Close()
	return nil
}
