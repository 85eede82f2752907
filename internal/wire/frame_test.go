package wire

import (
	"bytes"
	"math/rand"
	"testing"
)

func mustDeviceID(t *testing.T, admin uint32, typ, id uint16) DeviceId {
	t.Helper()
	d, err := NewDeviceId(admin, typ, id)
	if err != nil {
		t.Fatalf("NewDeviceId: %v", err)
	}
	return d
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		contentLen := r.Intn(32)
		content := make([]byte, contentLen)
		for j := range content {
			// deliberately include delimiter/escape bytes to exercise escaping
			switch r.Intn(4) {
			case 0:
				content[j] = FrameDelimiter
			case 1:
				content[j] = EscapeChar
			default:
				content[j] = byte(r.Intn(256))
			}
		}
		d := DataTable{
			LinkAddr:        0,
			Sender:          mustDeviceID(t, uint32(r.Intn(1<<24)), uint16(r.Intn(256)), uint16(r.Intn(65536))),
			Receiver:        mustDeviceID(t, uint32(r.Intn(1<<24)), uint16(r.Intn(256)), uint16(r.Intn(65536))),
			ProtocolVersion: ProtocolVersion,
			Operation:       OpUpload,
			ObjectID:        ObjTrafficRealtime,
			Content:         content,
		}

		frame, err := Encode(d)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if frame[0] != FrameDelimiter || frame[len(frame)-1] != FrameDelimiter {
			t.Fatalf("frame missing delimiters")
		}

		got, err := Decode(frame)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.LinkAddr != d.LinkAddr || got.Sender != d.Sender || got.Receiver != d.Receiver ||
			got.ProtocolVersion != d.ProtocolVersion || got.Operation != d.Operation || got.ObjectID != d.ObjectID {
			t.Fatalf("round trip header mismatch: got %+v want %+v", got, d)
		}
		if !bytes.Equal(got.Content, d.Content) {
			t.Fatalf("round trip content mismatch: got % X want % X", got.Content, d.Content)
		}
	}
}

// A handshake SET_REQ/COMMUNICATION frame carries no content and pins
// down the exact minimum frame length.
func TestScenarioSingleFrame(t *testing.T) {
	sender := mustDeviceID(t, 0x1AD24, 0x02, 0x100)
	d := DataTable{
		Sender:          sender,
		Receiver:        DeviceId{},
		ProtocolVersion: ProtocolVersion,
		Operation:       OpSetReq,
		ObjectID:        ObjCommunication,
	}

	frame, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if frame[0] != FrameDelimiter || frame[len(frame)-1] != FrameDelimiter {
		t.Fatalf("expected delimiters at both ends")
	}
	// 1 start + 20 header + 2 crc + 1 end, no escaping needed for this payload.
	if len(frame) != 24 {
		t.Fatalf("frame length = %d, want 24", len(frame))
	}

	got, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Sender != d.Sender || got.Receiver != d.Receiver || got.Operation != d.Operation || got.ObjectID != d.ObjectID {
		t.Fatalf("decoded = %+v, want %+v", got, d)
	}
	if len(got.Content) != 0 {
		t.Fatalf("expected empty content, got % X", got.Content)
	}
}

func TestDecodeFormatErrors(t *testing.T) {
	if _, err := Decode([]byte{0x00, 0xC0}); err != ErrFormat {
		t.Fatalf("expected ErrFormat for bad start byte, got %v", err)
	}
	if _, err := Decode([]byte{0xC0, 0x00}); err != ErrFormat {
		t.Fatalf("expected ErrFormat for bad end byte, got %v", err)
	}
}

func TestDecodeIncomplete(t *testing.T) {
	short := []byte{FrameDelimiter, 0x01, 0x02, 0x03, FrameDelimiter}
	if _, err := Decode(short); err != ErrIncomplete {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
}

func TestDecodeBadCRC(t *testing.T) {
	sender := mustDeviceID(t, 1, 2, 3)
	d := DataTable{Sender: sender, ProtocolVersion: ProtocolVersion, Operation: OpQueryReq, ObjectID: ObjCommunication}
	frame, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	// corrupt the CRC low byte (second-to-last byte before the end delimiter)
	frame[len(frame)-3] ^= 0xFF
	if _, err := Decode(frame); err != ErrCRC {
		t.Fatalf("expected ErrCRC, got %v", err)
	}
}

func TestEncodeRejectsOversizeContent(t *testing.T) {
	d := DataTable{
		Sender:          mustDeviceID(t, 1, 2, 3),
		ProtocolVersion: ProtocolVersion,
		Operation:       OpUpload,
		ObjectID:        ObjTrafficRealtime,
		Content:         make([]byte, MaxContentSize+1),
	}
	if _, err := Encode(d); err == nil {
		t.Fatalf("expected error for oversize content")
	}
}
