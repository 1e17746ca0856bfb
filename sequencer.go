// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"errors"
)

var (
	// RTP spec recomned
	maxMisorder uint16 = 100
	maxDropout  uint16 = 3000
	maxSeqNum   uint16 = 65535
)

var (
	ErrSequenceBad       = errors.New("bad sequence")
	ErrSequenceDuplicate = errors.New("sequence duplicate")
)

// ExtendedSequenceNumber resolves a wrapping 16-bit sequence number into a
// monotonic 64-bit index. One instance must live per source track for the
// whole session, otherwise wraparound state is lost between packets.
// For thread safety you should wrap it.
type ExtendedSequenceNumber struct {
	seqNum           uint16 // highest sequence observed
	wrapArroundCount uint16

	badSeq uint16
}

func (sn *ExtendedSequenceNumber) InitSeq(seq uint16) {
	sn.seqNum = seq
	sn.badSeq = maxSeqNum
	sn.wrapArroundCount = 0
}

// Based on https://datatracker.ietf.org/doc/html/rfc1889#appendix-A.2
func (sn *ExtendedSequenceNumber) UpdateSeq(seq uint16) error {
	maxSeq := sn.seqNum

	udelta := seq - maxSeq
	if udelta < uint16(maxDropout) {
		if seq < maxSeq {
			sn.wrapArroundCount++
		}
		sn.seqNum = seq
		return nil
	}

	badSeq := sn.badSeq
	if udelta <= maxSeqNum-maxMisorder {
		// sequence number made a very large jump
		if seq == badSeq {
			sn.InitSeq(seq)
			return nil
		}

		sn.badSeq = seq + 1
		return ErrSequenceBad
	}

	// Misordered within window or duplicate. Keep current state.
	return ErrSequenceDuplicate
}

func (sn *ExtendedSequenceNumber) ReadExtendedSeq() uint64 {
	res := uint64(sn.seqNum) + (uint64(maxSeqNum)+1)*uint64(sn.wrapArroundCount)
	return res
}
