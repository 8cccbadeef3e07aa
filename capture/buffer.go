package capture

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Layout of the record arena: the synthetic link layer header followed by
// the packet read from the socket. The record header itself is encoded by
// the trace writer.
const (
	linkHeaderOffset = 0
	linkHeaderLen    = 14
	payloadOffset    = linkHeaderOffset + linkHeaderLen
)

// recordBuffer is the single buffer a session reads packets into.
type recordBuffer struct {
	buf []byte
}

func newRecordBuffer(snaplen int) *recordBuffer {
	b := &recordBuffer{buf: make([]byte, payloadOffset+snaplen)}
	copy(b.buf[linkHeaderOffset:payloadOffset], linkHeader())
	return b
}

// payload is the region socket reads go to.
func (b *recordBuffer) payload() []byte {
	return b.buf[payloadOffset:]
}

// frame returns the link header plus the first n payload bytes.
func (b *recordBuffer) frame(n int) []byte {
	return b.buf[linkHeaderOffset : payloadOffset+n]
}

// linkHeader is an Ethernet header with zeroed addresses and EtherType IPv4.
func linkHeader() []byte {
	eth := &layers.Ethernet{
		SrcMAC:       make([]byte, 6),
		DstMAC:       make([]byte, 6),
		EthernetType: layers.EthernetTypeIPv4,
	}
	sb := gopacket.NewSerializeBuffer()
	if err := eth.SerializeTo(sb, gopacket.SerializeOptions{}); err != nil {
		// only fails on malformed MACs
		panic(err)
	}
	// SerializeTo pads short frames to the Ethernet minimum, keep the header only
	return sb.Bytes()[:linkHeaderLen]
}
