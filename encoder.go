// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/audiofork/audiofork/mediajson"
)

// SourceTrack pins one source onto the session timeline. baseTimestamp and
// offsetTicks are fixed at first observation and never revised; every later
// output timestamp is baseTimestamp delta plus offsetTicks. The sequence
// tracker keeps wraparound state for the whole life of the track.
type SourceTrack struct {
	ssrc          uint32
	trackID       string
	baseTimestamp uint32
	offsetTicks   int64
	seq           ExtendedSequenceNumber
}

// FrameFunc receives each serialized frame. The encoder has no knowledge
// of connectivity, delivery is the callback's problem.
type FrameFunc func(frame []byte)

// StreamEncoder turns packets into MediaJSON frames. It owns the source
// track registry and the session frame counter. The ingest queue already
// serializes callers, the mutex only guards against incidental concurrent
// entry.
type StreamEncoder struct {
	mu      sync.Mutex
	epoch   time.Time
	seqNum  uint64
	tracks  map[uint32]*SourceTrack
	onFrame FrameFunc

	now func() time.Time

	log zerolog.Logger
}

// NewStreamEncoder creates encoder for a session started at epoch. Frames
// are handed to onFrame in production order.
func NewStreamEncoder(epoch time.Time, onFrame FrameFunc) *StreamEncoder {
	return &StreamEncoder{
		epoch:   epoch,
		tracks:  make(map[uint32]*SourceTrack),
		onFrame: onFrame,
		now:     time.Now,
		log:     log.With().Str("caller", "StreamEncoder").Logger(),
	}
}

// Encode produces one MediaFrame for pkt, preceded by a StartFrame when the
// source is seen for the first time in this session. Timestamp deltas are
// taken as-is, negative deltas from reordered packets go out unchanged.
func (e *StreamEncoder) Encode(pkt *Packet) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tr, exists := e.tracks[pkt.RTP.SSRC]
	if !exists {
		tr = &SourceTrack{
			ssrc:          pkt.RTP.SSRC,
			trackID:       fmt.Sprintf("%s-%d", pkt.EndpointID, pkt.RTP.SSRC),
			baseTimestamp: pkt.RTP.Timestamp,
			offsetTicks:   durationToTicks(e.now().Sub(e.epoch)),
		}
		tr.seq.InitSeq(pkt.RTP.SequenceNumber)
		e.tracks[pkt.RTP.SSRC] = tr

		e.seqNum++
		start := mediajson.NewStartFrame(e.seqNum, tr.trackID, pkt.EndpointID, mediajson.FormatOpus)
		data, err := start.Marshal()
		if err != nil {
			return fmt.Errorf("marshal start frame: %w", err)
		}
		e.onFrame(data)
	} else {
		if err := tr.seq.UpdateSeq(pkt.RTP.SequenceNumber); err != nil {
			// Keep exporting with the last known index, recorder side
			// tolerates repeats better than gaps in the frame stream.
			e.log.Debug().Err(err).Uint32("ssrc", tr.ssrc).Uint16("seq", pkt.RTP.SequenceNumber).Msg("Sequence update failed")
		}
	}

	// Unsigned 32-bit difference reinterpreted as signed keeps both
	// directions of jitter correct across timestamp wrap.
	delta := int64(int32(pkt.RTP.Timestamp - tr.baseTimestamp))

	e.seqNum++
	media := mediajson.NewMediaFrame(e.seqNum, tr.trackID, tr.seq.ReadExtendedSeq(), delta+tr.offsetTicks, pkt.RTP.Payload)
	data, err := media.Marshal()
	if err != nil {
		return fmt.Errorf("marshal media frame: %w", err)
	}
	e.onFrame(data)
	return nil
}

// NumTracks reports how many sources were observed in this session.
func (e *StreamEncoder) NumTracks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tracks)
}
