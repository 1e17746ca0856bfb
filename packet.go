// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"sync/atomic"

	"github.com/pion/rtp"
)

// BufferPool recycles packet backing buffers. The pipeline only borrows:
// every buffer handed in through a Packet is returned exactly once,
// whatever path the packet takes.
type BufferPool interface {
	Get() []byte
	Put(buf []byte)
}

type MediaKind uint8

const (
	KindAudio MediaKind = iota
	KindVideo
)

// Packet is one routed media packet offered to the export pipeline.
// The RTP header fields carry the source identity: SSRC is the source id,
// Timestamp the source-native clock, SequenceNumber the wrapping 16-bit
// packet counter. Payload must reference buf so that the payload stays
// valid until Release.
type Packet struct {
	EndpointID string
	Kind       MediaKind
	RTP        rtp.Packet

	buf      []byte
	pool     BufferPool
	released atomic.Bool
}

func NewPacket(endpointID string, kind MediaKind, p rtp.Packet, buf []byte, pool BufferPool) *Packet {
	return &Packet{
		EndpointID: endpointID,
		Kind:       kind,
		RTP:        p,
		buf:        buf,
		pool:       pool,
	}
}

// Release returns the backing buffer to its pool. Safe to call more than
// once, only the first call returns the buffer.
func (p *Packet) Release() {
	if !p.released.CompareAndSwap(false, true) {
		return
	}
	if p.pool != nil && p.buf != nil {
		p.pool.Put(p.buf)
	}
	p.buf = nil
}
