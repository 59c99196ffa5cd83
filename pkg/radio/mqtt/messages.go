package mqtt

import (
	"github.com/golang/protobuf/proto"
)

// Uplink is the envelope published for every transmitted frame.
type Uplink struct {
	DeviceID string `protobuf:"bytes,1,opt,name=device_id,proto3" json:"device_id,omitempty"`
	Seq      uint32 `protobuf:"varint,2,opt,name=seq,proto3" json:"seq,omitempty"`
	Payload  []byte `protobuf:"bytes,3,opt,name=payload,proto3" json:"payload,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Uplink) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Uplink) Reset() { *m = Uplink{} }

// String implements proto.Message.
func (m *Uplink) String() string { return proto.CompactTextString(m) }

// Downlink is the envelope delivered to the device.
type Downlink struct {
	Payload []byte `protobuf:"bytes,1,opt,name=payload,proto3" json:"payload,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Downlink) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Downlink) Reset() { *m = Downlink{} }

// String implements proto.Message.
func (m *Downlink) String() string { return proto.CompactTextString(m) }

// DecodeUplink decodes a frame published on an uplink topic.
func DecodeUplink(payload []byte) (*Uplink, error) {
	var msg Uplink
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EncodeDownlink wraps a frame for a downlink topic.
func EncodeDownlink(payload []byte) ([]byte, error) {
	return proto.Marshal(&Downlink{Payload: payload})
}
