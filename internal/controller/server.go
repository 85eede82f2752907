// Package controller implements the signal-controller (server) side of
// the session state machine: accept loop, per-connection reassembly,
// handshake/heartbeat/upload handling, and timeout-driven disconnect.
package controller

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/acocosum/traffic-protocol/internal/config"
	"github.com/acocosum/traffic-protocol/internal/session"
	"github.com/acocosum/traffic-protocol/internal/stream"
	"github.com/acocosum/traffic-protocol/internal/wire"
)

// Server is the signal controller. One goroutine per accepted connection
// plus one heartbeat-sweep goroutine keeps every session independent: no
// frame handler blocks on I/O beyond its own connection's write.
type Server struct {
	cfg  *config.ControllerConfig
	self wire.DeviceId
	log  zerolog.Logger

	listener net.Listener
	sessions sync.Map // connID string -> *ClientSession
	count    atomic.Int32

	registry *Registry
	bus      *Bus
	admin    *adminServer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Server from cfg. Redis/NATS are dialed best-effort: a
// configured but unreachable endpoint fails New, an unconfigured
// (empty-URL) one is silently skipped — the registry and bus are optional
// observability add-ons, never load-bearing for the session machine.
func New(cfg *config.ControllerConfig, log zerolog.Logger) (*Server, error) {
	self, err := wire.NewDeviceId(cfg.AdminCode, wire.DeviceTypeSignal, cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("controller identity: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	registry, err := NewRegistry(ctx, cfg.RedisURL, log)
	if err != nil {
		cancel()
		return nil, err
	}
	bus, err := NewBus(cfg.NATSURL, log)
	if err != nil {
		cancel()
		registry.Close()
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		self:     self,
		log:      log,
		registry: registry,
		bus:      bus,
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.AdminAddr != "" {
		s.admin = newAdminServer(cfg.AdminAddr, s)
	}
	return s, nil
}

// Start begins listening and launches the accept loop, heartbeat sweep,
// and (if configured) admin HTTP surface. It returns once the listener is
// up; the loops run in background goroutines until Stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = listener
	s.log.Info().Str("addr", addr).Msg("signal controller listening")

	s.wg.Add(2)
	go s.acceptLoop()
	go s.heartbeatLoop()

	if s.admin != nil {
		s.admin.Start()
	}
	return nil
}

// Stop cancels the context, closes every socket, and waits for the
// background loops to exit before releasing the registry and bus.
func (s *Server) Stop() {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.sessions.Range(func(_, v any) bool {
		v.(*ClientSession).Conn.Close()
		return true
	})
	s.wg.Wait()
	if s.admin != nil {
		s.admin.Stop()
	}
	s.bus.Close()
	s.registry.Close()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.log.Warn().Err(err).Msg("accept error")
				continue
			}
		}

		if int(s.count.Load()) >= session.MaxSessions {
			s.log.Warn().Str("peer", conn.RemoteAddr().String()).Msg("session table full, rejecting connection")
			conn.Close()
			continue
		}

		sess := newClientSession(uuid.NewString(), conn)
		s.sessions.Store(sess.ConnID, sess)
		s.count.Add(1)
		s.log.Info().Str("conn_id", sess.ConnID).Str("peer", sess.PeerAddr).Msg("accepted connection")

		s.wg.Add(1)
		go s.handleConnection(sess)
	}
}

func (s *Server) handleConnection(sess *ClientSession) {
	defer s.wg.Done()
	defer s.cleanupSession(sess)

	buf := make([]byte, wire.MaxFrameSize)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		sess.Conn.SetReadDeadline(time.Now().Add(session.TickInterval))
		n, err := sess.Conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // readiness-wait tick; heartbeat sweep handles timeouts
			}
			s.log.Info().Str("conn_id", sess.ConnID).Err(err).Msg("connection closed")
			return
		}

		sess.Reassembler.Feed(buf[:n], func(f stream.Frame) {
			s.handleFrame(sess, f)
		})
	}
}

func (s *Server) handleFrame(sess *ClientSession, f stream.Frame) {
	if f.Err != nil {
		s.log.Warn().Str("conn_id", sess.ConnID).Err(f.Err).Msg("frame decode failed")
		if f.Err == wire.ErrCRC {
			s.log.Debug().Str("conn_id", sess.ConnID).Hex("raw", f.Raw).Msg("crc failure hex dump")
		}
		s.sendErrorResp(sess, decodeErrorCode(f.Err, f.Raw))
		return
	}

	msg := session.Classify(f.Table)
	switch msg.Kind {
	case session.KindHandshakeRequest:
		s.handleHandshake(sess, msg)
	case session.KindHandshakeResponse, session.KindHeartbeatResponse:
		sess.touch()
		s.publishUpload(sess, msg) // publishes the event and refreshes the registry TTL
	case session.KindHeartbeatQuery:
		sess.touch()
		s.registry.Touch(s.ctx, sess.ConnID)
		s.respond(sess, wire.OpQueryResp, wire.ObjCommunication, nil)
	case session.KindRealtimeUpload:
		s.publishUpload(sess, msg)
	case session.KindStatisticsUpload:
		s.publishUpload(sess, msg)
		s.respond(sess, wire.OpUploadResp, wire.ObjTrafficStats, nil)
	case session.KindStatusUpload:
		s.publishUpload(sess, msg)
		s.respond(sess, wire.OpUploadResp, wire.ObjDetectorStatus, nil)
	case session.KindErrorNotice:
		s.log.Warn().Str("conn_id", sess.ConnID).Bytes("content", msg.Table.Content).Msg("peer reported error")
	default:
		s.log.Debug().Str("conn_id", sess.ConnID).Uint16("object_id", msg.Table.ObjectID).Msg("unrecognized object id, ignored")
	}
}

func (s *Server) handleHandshake(sess *ClientSession, msg session.Message) {
	sess.markEstablished(msg.Table.Sender)
	s.registry.Register(s.ctx, sess.ConnID, msg.Table.Sender, sess.PeerAddr)
	s.bus.Publish(msg.Kind, SessionEvent{
		ConnID:     sess.ConnID,
		AdminCode:  msg.Table.Sender.AdminCode,
		DeviceID:   msg.Table.Sender.DeviceId,
		DeviceType: msg.Table.Sender.DeviceType,
		ObjectID:   msg.Table.ObjectID,
		Timestamp:  time.Now().Unix(),
	})
	s.respond(sess, wire.OpSetResp, wire.ObjCommunication, nil)
	s.log.Info().Str("conn_id", sess.ConnID).Uint32("admin_code", msg.Table.Sender.AdminCode).
		Uint16("device_id", msg.Table.Sender.DeviceId).Msg("handshake established")
}

func (s *Server) publishUpload(sess *ClientSession, msg session.Message) {
	identity, _, _ := sess.snapshot()
	ev := SessionEvent{ConnID: sess.ConnID, ObjectID: msg.Table.ObjectID, Timestamp: time.Now().Unix()}
	if identity != nil {
		ev.AdminCode, ev.DeviceID, ev.DeviceType = identity.AdminCode, identity.DeviceId, identity.DeviceType
	}
	s.bus.Publish(msg.Kind, ev)
	s.registry.Touch(s.ctx, sess.ConnID)
}

// respond addresses a reply to the session's established peer identity,
// falling back to an unknown (zero) receiver if the handshake hasn't
// happened yet.
func (s *Server) respond(sess *ClientSession, op byte, objectID uint16, content []byte) {
	identity, _, _ := sess.snapshot()
	receiver := wire.DeviceId{}
	if identity != nil {
		receiver = *identity
	}
	table := wire.DataTable{
		Sender:          s.self,
		Receiver:        receiver,
		ProtocolVersion: wire.ProtocolVersion,
		Operation:       op,
		ObjectID:        objectID,
		Content:         content,
	}
	if err := sess.send(table); err != nil {
		s.log.Warn().Str("conn_id", sess.ConnID).Err(err).Msg("failed to send response")
	}
}

func (s *Server) sendErrorResp(sess *ClientSession, code byte) {
	s.respond(sess, wire.OpErrorResp, wire.ObjErrorReport, []byte{code})
}

// decodeErrorCode maps a wire decode failure onto the single-byte
// ERROR_RESP content codes. ErrFormat is split by inspecting which
// delimiter actually failed, since wire.Decode itself doesn't
// distinguish start from end.
func decodeErrorCode(err error, raw []byte) byte {
	switch err {
	case wire.ErrCRC:
		return wire.ErrCodeCRC
	case wire.ErrFormat:
		if len(raw) == 0 || raw[0] != wire.FrameDelimiter {
			return wire.ErrCodeFrameStart
		}
		return wire.ErrCodeFrameEnd
	default: // ErrEscape, ErrIncomplete, ErrOversize
		return wire.ErrCodeContent
	}
}

func (s *Server) heartbeatLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(session.TickInterval)
	defer ticker.Stop()

	lastSweep := time.Now()
	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(lastSweep) < session.HeartbeatInterval {
				continue
			}
			lastSweep = now
			s.sweep(now)
		}
	}
}

func (s *Server) sweep(now time.Time) {
	s.sessions.Range(func(_, v any) bool {
		sess := v.(*ClientSession)
		_, established, lastHeartbeatAt := sess.snapshot()
		if !established {
			return true
		}
		if now.Sub(lastHeartbeatAt) > session.HeartbeatTimeout {
			s.log.Info().Str("conn_id", sess.ConnID).Msg("heartbeat timeout, disconnecting")
			sess.Conn.Close()
			return true
		}
		s.respond(sess, wire.OpQueryReq, wire.ObjCommunication, nil)
		return true
	})
}

func (s *Server) cleanupSession(sess *ClientSession) {
	s.sessions.Delete(sess.ConnID)
	s.count.Add(-1)
	s.registry.Remove(s.ctx, sess.ConnID)
	sess.Conn.Close()
	s.log.Info().Str("conn_id", sess.ConnID).Msg("session destroyed")
}

// Addr returns the listener's bound address, useful when Port is 0 (tests
// pick an ephemeral port this way).
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Sessions returns a point-in-time snapshot for the admin surface.
func (s *Server) Sessions() []SessionSummary {
	var out []SessionSummary
	s.sessions.Range(func(_, v any) bool {
		sess := v.(*ClientSession)
		identity, established, lastHeartbeatAt := sess.snapshot()
		sum := SessionSummary{
			ConnID:          sess.ConnID,
			PeerAddr:        sess.PeerAddr,
			Established:     established,
			LastHeartbeatAt: lastHeartbeatAt,
		}
		if identity != nil {
			sum.AdminCode, sum.DeviceID, sum.DeviceType = identity.AdminCode, identity.DeviceId, identity.DeviceType
		}
		out = append(out, sum)
		return true
	})
	return out
}

// SessionSummary is the admin-surface read model for one session.
type SessionSummary struct {
	ConnID          string    `json:"conn_id"`
	PeerAddr        string    `json:"peer_addr"`
	Established     bool      `json:"established"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
	AdminCode       uint32    `json:"admin_code,omitempty"`
	DeviceID        uint16    `json:"device_id,omitempty"`
	DeviceType      uint16    `json:"device_type,omitempty"`
}
