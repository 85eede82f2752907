package controller

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/acocosum/traffic-protocol/internal/session"
)

// SessionEvent is the envelope published on the uplink bus: session
// control-plane facts only (who, what kind, which object id). Payload
// content stays opaque — subscribers get the fact that an upload
// happened, not invented semantics for bytes this package never
// inspects.
type SessionEvent struct {
	ConnID     string `json:"conn_id"`
	AdminCode  uint32 `json:"admin_code"`
	DeviceID   uint16 `json:"device_id"`
	DeviceType uint16 `json:"device_type"`
	Kind       string `json:"kind"`
	ObjectID   uint16 `json:"object_id"`
	Timestamp  int64  `json:"timestamp"`
}

// Bus publishes SessionEvents onto NATS subjects under "sigctrl.uplink.*".
// A nil *Bus is valid and a no-op, mirroring Registry's degrade-gracefully
// contract.
type Bus struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NewBus connects to url. An empty url disables the bus (nil, nil).
func NewBus(url string, log zerolog.Logger) (*Bus, error) {
	if url == "" {
		return nil, nil
	}
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return &Bus{conn: conn, log: log}, nil
}

// Publish emits ev on "sigctrl.uplink.<kind>" and "sigctrl.uplink.all".
// Failures are logged and never retried: a dropped uplink event is stale
// by the time a retry would land, so retrying only delays the next one.
func (b *Bus) Publish(kind session.Kind, ev SessionEvent) {
	if b == nil {
		return
	}
	ev.Kind = kindName(kind)
	data, err := json.Marshal(ev)
	if err != nil {
		b.log.Warn().Err(err).Msg("bus: failed to marshal session event")
		return
	}
	subject := "sigctrl.uplink." + ev.Kind
	if err := b.conn.Publish(subject, data); err != nil {
		b.log.Warn().Err(err).Str("subject", subject).Msg("bus: publish failed")
		return
	}
	if err := b.conn.Publish("sigctrl.uplink.all", data); err != nil {
		b.log.Warn().Err(err).Msg("bus: publish to catch-all failed")
	}
}

// Close closes the underlying NATS connection without draining it.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.conn.Close()
}

func kindName(k session.Kind) string {
	switch k {
	case session.KindHandshakeRequest, session.KindHandshakeResponse:
		return "handshake"
	case session.KindHeartbeatQuery, session.KindHeartbeatResponse:
		return "heartbeat"
	case session.KindRealtimeUpload:
		return "realtime"
	case session.KindStatisticsUpload:
		return "statistics"
	case session.KindStatusUpload:
		return "status"
	case session.KindErrorNotice:
		return "error"
	default:
		return "unknown"
	}
}
