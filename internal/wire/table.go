package wire

import "fmt"

// DeviceId identifies either endpoint on the link: the signal controller
// or one vehicle detector. admin_code is a 24-bit administrative-division
// code; device_type is a bitmask over the DeviceType* constants.
type DeviceId struct {
	AdminCode  uint32
	DeviceType uint16
	DeviceId   uint16
}

// NewDeviceId validates AdminCode against the 24-bit ceiling before
// returning.
func NewDeviceId(adminCode uint32, deviceType, deviceID uint16) (DeviceId, error) {
	if adminCode > MaxAdminCode {
		return DeviceId{}, fmt.Errorf("%w: admin_code %d exceeds 24 bits", ErrInvalidParam, adminCode)
	}
	return DeviceId{AdminCode: adminCode, DeviceType: deviceType, DeviceId: deviceID}, nil
}

// DataTable is the logical message carried by one frame.
type DataTable struct {
	LinkAddr        uint16 // reserved, always 0x0000
	Sender          DeviceId
	Receiver        DeviceId
	ProtocolVersion byte
	Operation       byte
	ObjectID        uint16
	Content         []byte
}

// Validate checks the invariant Encode relies on: content length within
// the maximum a single frame can carry.
func (d DataTable) Validate() error {
	if len(d.Content) > MaxContentSize {
		return fmt.Errorf("%w: content length %d exceeds %d", ErrInvalidParam, len(d.Content), MaxContentSize)
	}
	return nil
}
