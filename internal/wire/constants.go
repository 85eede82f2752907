// Package wire implements the GB/T 43229-2023 frame codec: byte-stuffing,
// CRC-16, and data-table serialization. It has no knowledge of sockets,
// sessions, or timers — those live in internal/stream, internal/session,
// internal/controller and internal/detector.
package wire

// Frame delimiters and escape bytes.
const (
	FrameDelimiter byte = 0xC0 // marks both frame start and frame end
	EscapeChar     byte = 0xDB
	EscapeDelim    byte = 0xDC // 0xDB 0xDC -> 0xC0
	EscapeEscape   byte = 0xDD // 0xDB 0xDD -> 0xDB

	ProtocolVersion byte = 0x10

	MaxFrameSize   = 2048 // unescaped frame ceiling, header+content+CRC
	MaxContentSize = 1500
	HeaderSize     = 20 // link_addr(2)+sender(7)+receiver(7)+ver(1)+op(1)+object(2)
	CRCSize        = 2
)

// Operation codes (8-bit).
const (
	OpQueryReq    byte = 0x80
	OpSetReq      byte = 0x81
	OpUpload      byte = 0x82
	OpQueryResp   byte = 0x83
	OpSetResp     byte = 0x84
	OpUploadResp  byte = 0x85
	OpErrorResp   byte = 0x86
)

// Object identifiers. Only a handful of these are dispatched by
// internal/session's state machine; the rest (device time, serial and
// Ethernet parameters, detector config, traffic history) are recognized
// on the wire but logged and ignored, not acted on.
const (
	ObjCommunication    uint16 = 0x0101
	ObjDeviceTime       uint16 = 0x0201
	ObjSerialParams     uint16 = 0x0202
	ObjEthernetParams   uint16 = 0x0203
	ObjDetectorConfig   uint16 = 0x0204
	ObjDetectorStatus   uint16 = 0x0205
	ObjTrafficRealtime  uint16 = 0x0301
	ObjTrafficStats     uint16 = 0x0302
	ObjTrafficHistory   uint16 = 0x0303
	ObjErrorReport      uint16 = 0x0000
)

// Device type bits (low 8 bits of DeviceId.DeviceType).
const (
	DeviceTypeSignal     uint16 = 1 << 0
	DeviceTypeCoil       uint16 = 1 << 1
	DeviceTypeMagnetic   uint16 = 1 << 2
	DeviceTypeUltrasonic uint16 = 1 << 3
	DeviceTypeVideo      uint16 = 1 << 4
	DeviceTypeMicrowave  uint16 = 1 << 5
	DeviceTypeRadar      uint16 = 1 << 6
	DeviceTypeRFID       uint16 = 1 << 7
)

// ERROR_RESP content codes (single byte payload on object 0x0000).
const (
	ErrCodeFrameStart     byte = 1
	ErrCodeFrameEnd       byte = 2
	ErrCodeCRC            byte = 3
	ErrCodeLinkAddr       byte = 4
	ErrCodeProtocolVer    byte = 5
	ErrCodeOperationType  byte = 6
	ErrCodeObjectID       byte = 7
	ErrCodeContent        byte = 128
)

const MaxAdminCode uint32 = 0xFFFFFF
