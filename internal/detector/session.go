package detector

import (
	"net"
	"time"

	"github.com/acocosum/traffic-protocol/internal/stream"
	"github.com/acocosum/traffic-protocol/internal/wire"
)

// detectorSession is the client-side singleton session. Unlike the
// server, there is exactly one of these per process, and it is only ever
// touched from the engine's own loop goroutine — no mutex needed.
type detectorSession struct {
	conn     net.Conn // nil while disconnected
	local    wire.DeviceId
	server   wire.DeviceId
	serverAddr string

	reassembler *stream.Reassembler

	lastConnectAttemptAt   time.Time
	lastRealtimeUploadAt   time.Time
	lastStatisticsUploadAt time.Time
	lastHeartbeatAt        time.Time

	established bool
}

func newDetectorSession(local wire.DeviceId, addr string) *detectorSession {
	return &detectorSession{
		local:       local,
		serverAddr:  addr,
		reassembler: stream.New(2 * wire.MaxFrameSize),
	}
}

func (d *detectorSession) connected() bool {
	return d.conn != nil
}

func (d *detectorSession) teardown() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
	d.established = false
	d.reassembler.Reset()
}
