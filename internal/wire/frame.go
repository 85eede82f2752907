package wire

import (
	"encoding/binary"
	"fmt"
)

// maxUnescapedCapacity is the largest unescaped sequence a valid
// DataTable serializes to: header + max content + crc, before escaping
// (escaping can at most double it). Encode sizes its buffers exactly
// from the table and EscapedLen rather than from this bound.
const maxUnescapedCapacity = HeaderSize + MaxContentSize + CRCSize

func putUint24LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

func uint24LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func putDeviceID(b []byte, id DeviceId) {
	putUint24LE(b[0:3], id.AdminCode)
	binary.LittleEndian.PutUint16(b[3:5], id.DeviceType)
	binary.LittleEndian.PutUint16(b[5:7], id.DeviceId)
}

func getDeviceID(b []byte) DeviceId {
	return DeviceId{
		AdminCode:  uint24LE(b[0:3]),
		DeviceType: binary.LittleEndian.Uint16(b[3:5]),
		DeviceId:   binary.LittleEndian.Uint16(b[5:7]),
	}
}

// serializeTable writes the unescaped header+content+crc sequence:
// everything that sits between the two frame delimiters, before escaping.
func serializeTable(d DataTable) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, HeaderSize+len(d.Content)+CRCSize)

	binary.LittleEndian.PutUint16(buf[0:2], d.LinkAddr)
	putDeviceID(buf[2:9], d.Sender)
	putDeviceID(buf[9:16], d.Receiver)
	buf[16] = d.ProtocolVersion
	buf[17] = d.Operation
	binary.LittleEndian.PutUint16(buf[18:20], d.ObjectID)
	copy(buf[20:20+len(d.Content)], d.Content)

	crc := CRC16(buf[:20+len(d.Content)])
	binary.LittleEndian.PutUint16(buf[20+len(d.Content):], crc)

	return buf, nil
}

// Encode serializes d into a complete wire frame: start delimiter,
// escaped header+content+crc, end delimiter.
func Encode(d DataTable) ([]byte, error) {
	unescaped, err := serializeTable(d)
	if err != nil {
		return nil, err
	}
	if len(unescaped) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrOversize, len(unescaped))
	}

	escapedLen := EscapedLen(unescaped)
	frame := make([]byte, 1+escapedLen+1)
	frame[0] = FrameDelimiter
	n, err := Escape(unescaped, frame[1:1+escapedLen])
	if err != nil {
		return nil, err
	}
	frame[1+n] = FrameDelimiter
	return frame[:1+n+1], nil
}

// Decode parses a complete wire frame (including both delimiters) back
// into a DataTable: strip delimiters, unescape, check length, verify
// CRC, then split header fields from content.
func Decode(frame []byte) (DataTable, error) {
	if len(frame) < 2 || frame[0] != FrameDelimiter || frame[len(frame)-1] != FrameDelimiter {
		return DataTable{}, ErrFormat
	}
	interior := frame[1 : len(frame)-1]

	unescaped := make([]byte, len(interior)) // unescaping never grows the buffer
	n, err := Unescape(interior, unescaped)
	if err != nil {
		return DataTable{}, err
	}
	unescaped = unescaped[:n]

	if len(unescaped) > MaxFrameSize {
		return DataTable{}, fmt.Errorf("%w: %d bytes", ErrOversize, len(unescaped))
	}
	if len(unescaped) < HeaderSize+CRCSize {
		return DataTable{}, ErrIncomplete
	}

	body := unescaped[:len(unescaped)-CRCSize]
	receivedCRC := binary.LittleEndian.Uint16(unescaped[len(unescaped)-CRCSize:])
	if computed := CRC16(body); computed != receivedCRC {
		return DataTable{}, ErrCRC
	}

	d := DataTable{
		LinkAddr:        binary.LittleEndian.Uint16(body[0:2]),
		Sender:          getDeviceID(body[2:9]),
		Receiver:        getDeviceID(body[9:16]),
		ProtocolVersion: body[16],
		Operation:       body[17],
		ObjectID:        binary.LittleEndian.Uint16(body[18:20]),
	}
	if len(body) > HeaderSize {
		content := make([]byte, len(body)-HeaderSize)
		copy(content, body[HeaderSize:])
		d.Content = content
	}
	return d, nil
}
