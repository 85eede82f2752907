package session

import "github.com/acocosum/traffic-protocol/internal/wire"

// Kind names the message classes the state machine reacts to. Anything
// else decodes fine but drives no session logic — it is logged and
// ignored.
type Kind int

const (
	KindUnknown Kind = iota
	KindHandshakeRequest
	KindHandshakeResponse
	KindHeartbeatQuery
	KindHeartbeatResponse
	KindRealtimeUpload
	KindStatisticsUpload
	KindStatusUpload
	KindUploadResponse
	KindErrorNotice
)

// Message is the sum type produced by Classify: a decoded DataTable
// tagged with the session-relevant meaning of its (object_id, operation)
// pair, so callers switch on Kind instead of re-deriving it from the raw
// fields at every call site.
type Message struct {
	Kind  Kind
	Table wire.DataTable
}

// Classify inspects a decoded DataTable and returns the Message the
// session state machine should react to. It never mutates or copies
// Content beyond the reference already owned by the caller.
func Classify(d wire.DataTable) Message {
	switch d.ObjectID {
	case wire.ObjCommunication:
		switch d.Operation {
		case wire.OpSetReq:
			return Message{Kind: KindHandshakeRequest, Table: d}
		case wire.OpSetResp:
			return Message{Kind: KindHandshakeResponse, Table: d}
		case wire.OpQueryReq:
			return Message{Kind: KindHeartbeatQuery, Table: d}
		case wire.OpQueryResp:
			return Message{Kind: KindHeartbeatResponse, Table: d}
		}
	case wire.ObjTrafficRealtime:
		if d.Operation == wire.OpUpload {
			return Message{Kind: KindRealtimeUpload, Table: d}
		}
	case wire.ObjTrafficStats:
		switch d.Operation {
		case wire.OpUpload:
			return Message{Kind: KindStatisticsUpload, Table: d}
		case wire.OpUploadResp:
			return Message{Kind: KindUploadResponse, Table: d}
		}
	case wire.ObjDetectorStatus:
		switch d.Operation {
		case wire.OpUpload:
			return Message{Kind: KindStatusUpload, Table: d}
		case wire.OpUploadResp:
			return Message{Kind: KindUploadResponse, Table: d}
		}
	case wire.ObjErrorReport:
		if d.Operation == wire.OpErrorResp {
			return Message{Kind: KindErrorNotice, Table: d}
		}
	}
	return Message{Kind: KindUnknown, Table: d}
}

// IsRecognizedObject reports whether id is one of the four object
// identifiers the session core actively dispatches on.
func IsRecognizedObject(id uint16) bool {
	switch id {
	case wire.ObjCommunication, wire.ObjDetectorStatus, wire.ObjTrafficRealtime, wire.ObjTrafficStats:
		return true
	default:
		return false
	}
}
