package controller

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/acocosum/traffic-protocol/internal/stream"
	"github.com/acocosum/traffic-protocol/internal/wire"
)

// ClientSession is one accepted connection, from accept to destruction.
// Exactly one goroutine — the one running handleConnection — ever touches
// Reassembler; everything else a concurrent sweep might read or write is
// guarded by mu.
type ClientSession struct {
	ConnID   string
	Conn     net.Conn
	PeerAddr string

	Reassembler *stream.Reassembler

	mu              sync.Mutex
	identity        *wire.DeviceId
	established     bool
	lastHeartbeatAt time.Time
}

func newClientSession(connID string, conn net.Conn) *ClientSession {
	return &ClientSession{
		ConnID:          connID,
		Conn:            conn,
		PeerAddr:        conn.RemoteAddr().String(),
		Reassembler:     stream.New(2 * wire.MaxFrameSize),
		lastHeartbeatAt: time.Now(),
	}
}

// touch resets the heartbeat liveness clock — called on every well-formed
// COMMUNICATION frame from the peer other than the handshake request,
// which resets it through markEstablished.
func (s *ClientSession) touch() {
	s.mu.Lock()
	s.lastHeartbeatAt = time.Now()
	s.mu.Unlock()
}

func (s *ClientSession) markEstablished(id wire.DeviceId) {
	s.mu.Lock()
	s.identity = &id
	s.established = true
	s.lastHeartbeatAt = time.Now()
	s.mu.Unlock()
}

func (s *ClientSession) snapshot() (identity *wire.DeviceId, established bool, lastHeartbeatAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.established, s.lastHeartbeatAt
}

// send serializes one frame write per session so two goroutines
// (the read loop replying to a request, and the heartbeat sweep) never
// interleave partial writes on the same connection.
func (s *ClientSession) send(table wire.DataTable) error {
	frame, err := wire.Encode(table)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAll(s.Conn, frame)
}

// writeAll loops on partial writes: net.Conn.Write can return fewer
// bytes than requested without an error, so a single call is not enough
// to guarantee the whole frame reached the wire.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
