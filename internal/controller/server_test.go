package controller

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/acocosum/traffic-protocol/internal/config"
	"github.com/acocosum/traffic-protocol/internal/wire"
)

func testServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()
	cfg := &config.ControllerConfig{Port: 0, AdminCode: 0x01AD24, DeviceID: 1}
	s, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return s, conn
}

func readFrame(t *testing.T, conn net.Conn) wire.DataTable {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 0, 256)
	one := make([]byte, 256)
	for {
		n, err := conn.Read(one)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		buf = append(buf, one[:n]...)
		if idx := indexSecondDelimiter(buf); idx >= 0 {
			d, err := wire.Decode(buf[:idx+1])
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			return d
		}
	}
}

func indexSecondDelimiter(b []byte) int {
	count := 0
	for i, c := range b {
		if c == wire.FrameDelimiter {
			count++
			if count == 2 {
				return i
			}
		}
	}
	return -1
}

func TestHandshakeEstablishesSession(t *testing.T) {
	_, conn := testServer(t)

	sender, err := wire.NewDeviceId(0x1AD24, wire.DeviceTypeCoil, 42)
	if err != nil {
		t.Fatalf("NewDeviceId: %v", err)
	}
	req := wire.DataTable{
		Sender:          sender,
		ProtocolVersion: wire.ProtocolVersion,
		Operation:       wire.OpSetReq,
		ObjectID:        wire.ObjCommunication,
	}
	frame, err := wire.Encode(req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("Write: %v", err)
	}

	resp := readFrame(t, conn)
	if resp.Operation != wire.OpSetResp || resp.ObjectID != wire.ObjCommunication {
		t.Fatalf("got operation=0x%02X object=0x%04X, want SET_RESP/COMMUNICATION", resp.Operation, resp.ObjectID)
	}
}

func TestStatisticsUploadGetsAck(t *testing.T) {
	_, conn := testServer(t)

	sender, _ := wire.NewDeviceId(0x1AD24, wire.DeviceTypeCoil, 7)
	handshake, _ := wire.Encode(wire.DataTable{
		Sender: sender, ProtocolVersion: wire.ProtocolVersion,
		Operation: wire.OpSetReq, ObjectID: wire.ObjCommunication,
	})
	conn.Write(handshake)
	readFrame(t, conn) // discard SET_RESP

	upload, _ := wire.Encode(wire.DataTable{
		Sender: sender, ProtocolVersion: wire.ProtocolVersion,
		Operation: wire.OpUpload, ObjectID: wire.ObjTrafficStats, Content: []byte{1, 2, 3},
	})
	conn.Write(upload)

	resp := readFrame(t, conn)
	if resp.Operation != wire.OpUploadResp || resp.ObjectID != wire.ObjTrafficStats {
		t.Fatalf("got operation=0x%02X object=0x%04X, want UPLOAD_RESP/TRAFFIC_STATS", resp.Operation, resp.ObjectID)
	}
}

func TestBadCRCGetsErrorResp(t *testing.T) {
	_, conn := testServer(t)

	sender, _ := wire.NewDeviceId(0x1AD24, wire.DeviceTypeCoil, 7)
	frame, _ := wire.Encode(wire.DataTable{
		Sender: sender, ProtocolVersion: wire.ProtocolVersion,
		Operation: wire.OpUpload, ObjectID: wire.ObjTrafficRealtime, Content: []byte{9},
	})
	frame[len(frame)-3] ^= 0xFF // corrupt CRC low byte
	conn.Write(frame)

	resp := readFrame(t, conn)
	if resp.Operation != wire.OpErrorResp || resp.ObjectID != wire.ObjErrorReport {
		t.Fatalf("got operation=0x%02X object=0x%04X, want ERROR_RESP", resp.Operation, resp.ObjectID)
	}
	if len(resp.Content) != 1 || resp.Content[0] != wire.ErrCodeCRC {
		t.Fatalf("error content = % X, want [%02X]", resp.Content, wire.ErrCodeCRC)
	}
}

func TestSessionTornDownOnPeerClose(t *testing.T) {
	s, conn := testServer(t)

	sender, _ := wire.NewDeviceId(0x1AD24, wire.DeviceTypeCoil, 7)
	handshake, _ := wire.Encode(wire.DataTable{
		Sender: sender, ProtocolVersion: wire.ProtocolVersion,
		Operation: wire.OpSetReq, ObjectID: wire.ObjCommunication,
	})
	conn.Write(handshake)
	readFrame(t, conn)

	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(s.Sessions()) == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("session was not cleaned up after peer close")
}
