// Package detector implements the vehicle-detector (client) side: connect
// with backoff, handshake, feed the reassembler, and drive upload and
// heartbeat-response timers.
package detector

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/acocosum/traffic-protocol/internal/config"
	"github.com/acocosum/traffic-protocol/internal/session"
	"github.com/acocosum/traffic-protocol/internal/stream"
	"github.com/acocosum/traffic-protocol/internal/wire"
)

// realtimeChannel and statusChannels are the fixed channel numbering the
// default Generator reports under; a real detector would drive these from
// its own hardware configuration.
const (
	realtimeChannel = 1
	statusChannels  = 4
)

// Engine is the cooperative client loop: one goroutine driven by a
// 1-second ticker, checking connection, upload, and heartbeat timers on
// every tick instead of scheduling each with its own timer.
type Engine struct {
	cfg       *config.DetectorConfig
	log       zerolog.Logger
	generator Generator
	sess      *detectorSession
}

// New builds an Engine from cfg.
func New(cfg *config.DetectorConfig, log zerolog.Logger) (*Engine, error) {
	local, err := wire.NewDeviceId(cfg.AdminCode, cfg.DeviceType, cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("detector identity: %w", err)
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Engine{
		cfg:       cfg,
		log:       log,
		generator: NewGenerator(),
		sess:      newDetectorSession(local, addr),
	}, nil
}

// Run drives the client loop until stop is closed.
func (e *Engine) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(session.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			e.sess.teardown()
			return
		case now := <-ticker.C:
			e.tick(now)
		}
	}
}

func (e *Engine) tick(now time.Time) {
	if !e.sess.connected() {
		if now.Sub(e.sess.lastConnectAttemptAt) >= session.ConnectRetry {
			e.connect(now)
		}
		return
	}

	e.readOnce(now)
	if !e.sess.connected() {
		return
	}

	if now.Sub(e.sess.lastRealtimeUploadAt) >= session.RealtimeUploadPeriod {
		e.uploadRealtime(now)
	}
	if now.Sub(e.sess.lastStatisticsUploadAt) >= session.StatisticsPeriod {
		e.uploadStatistics(now)
	}
	if e.sess.established && now.Sub(e.sess.lastHeartbeatAt) > session.HeartbeatTimeout {
		e.log.Warn().Msg("heartbeat timeout, tearing down connection")
		e.sess.teardown()
	}
}

func (e *Engine) connect(now time.Time) {
	e.sess.lastConnectAttemptAt = now
	conn, err := net.DialTimeout("tcp", e.sess.serverAddr, session.TickInterval)
	if err != nil {
		e.log.Warn().Err(err).Str("addr", e.sess.serverAddr).Msg("connect failed, will retry")
		return
	}
	e.sess.conn = conn
	e.sess.lastHeartbeatAt = now
	e.log.Info().Str("addr", e.sess.serverAddr).Msg("connected, sending handshake")

	table := wire.DataTable{
		Sender:          e.sess.local,
		ProtocolVersion: wire.ProtocolVersion,
		Operation:       wire.OpSetReq,
		ObjectID:        wire.ObjCommunication,
	}
	if err := e.sendControl(table); err != nil {
		e.log.Warn().Err(err).Msg("failed to send handshake")
	}
}

func (e *Engine) readOnce(now time.Time) {
	e.sess.conn.SetReadDeadline(now.Add(session.TickInterval))
	buf := make([]byte, wire.MaxFrameSize)
	n, err := e.sess.conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return
		}
		e.log.Info().Err(err).Msg("connection lost")
		e.sess.teardown()
		return
	}
	e.sess.reassembler.Feed(buf[:n], e.handleFrame)
}

func (e *Engine) handleFrame(f stream.Frame) {
	if f.Err != nil {
		e.log.Warn().Err(f.Err).Msg("frame decode failed")
		return
	}
	msg := session.Classify(f.Table)
	switch msg.Kind {
	case session.KindHandshakeResponse:
		e.sess.established = true
		e.sess.server = f.Table.Sender
		e.sess.lastHeartbeatAt = time.Now()
		e.log.Info().Msg("handshake established")
	case session.KindHeartbeatQuery:
		e.sess.lastHeartbeatAt = time.Now()
		reply := wire.DataTable{
			Sender: e.sess.local, Receiver: e.sess.server,
			ProtocolVersion: wire.ProtocolVersion, Operation: wire.OpQueryResp, ObjectID: wire.ObjCommunication,
		}
		if err := e.sendControl(reply); err != nil {
			e.log.Warn().Err(err).Msg("failed to send heartbeat response")
		}
	case session.KindUploadResponse:
		e.log.Debug().Uint16("object_id", msg.Table.ObjectID).Msg("upload acknowledged")
	case session.KindErrorNotice:
		e.log.Warn().Bytes("content", msg.Table.Content).Msg("controller reported error")
	default:
		e.log.Debug().Uint16("object_id", msg.Table.ObjectID).Msg("unrecognized object id, ignored")
	}
}

func (e *Engine) uploadRealtime(now time.Time) {
	e.sess.lastRealtimeUploadAt = now
	table := wire.DataTable{
		Sender: e.sess.local, Receiver: e.sess.server,
		ProtocolVersion: wire.ProtocolVersion, Operation: wire.OpUpload, ObjectID: wire.ObjTrafficRealtime,
		Content: e.generator.Realtime(realtimeChannel),
	}
	// Best effort: a failed realtime sample is logged and dropped, not
	// retried — a broken socket is instead caught by the next
	// readOnce/heartbeat-timeout check, not here.
	if err := e.sendBestEffort(table); err != nil {
		e.log.Warn().Err(err).Msg("realtime upload failed")
	}
}

func (e *Engine) uploadStatistics(now time.Time) {
	e.sess.lastStatisticsUploadAt = now
	table := wire.DataTable{
		Sender: e.sess.local, Receiver: e.sess.server,
		ProtocolVersion: wire.ProtocolVersion, Operation: wire.OpUpload, ObjectID: wire.ObjTrafficStats,
		Content: e.generator.Statistics(realtimeChannel),
	}
	if err := e.sendControl(table); err != nil {
		e.log.Warn().Err(err).Msg("statistics upload failed")
	}
}

// UploadStatus sends a DETECTOR_STATUS upload. It is exposed rather than
// driven by its own timer so callers report status changes as they
// happen (fault raised or cleared) instead of on a fixed cadence.
func (e *Engine) UploadStatus() error {
	if !e.sess.connected() {
		return fmt.Errorf("detector: not connected")
	}
	table := wire.DataTable{
		Sender: e.sess.local, Receiver: e.sess.server,
		ProtocolVersion: wire.ProtocolVersion, Operation: wire.OpUpload, ObjectID: wire.ObjDetectorStatus,
		Content: e.generator.Status(statusChannels),
	}
	return e.sendControl(table)
}

// sendControl writes a control-plane frame (handshake, heartbeat, status/
// stats upload) and tears the connection down on failure, since these
// frames matter enough that a write failure means the connection itself
// is no longer trustworthy.
func (e *Engine) sendControl(table wire.DataTable) error {
	if err := e.write(table); err != nil {
		e.sess.teardown()
		return err
	}
	return nil
}

// sendBestEffort writes a realtime sample without tearing the session
// down on failure: realtime samples are frequent and disposable, so one
// dropped write isn't worth reconnecting over.
func (e *Engine) sendBestEffort(table wire.DataTable) error {
	return e.write(table)
}

func (e *Engine) write(table wire.DataTable) error {
	frame, err := wire.Encode(table)
	if err != nil {
		return err
	}
	for len(frame) > 0 {
		n, err := e.sess.conn.Write(frame)
		if err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}
