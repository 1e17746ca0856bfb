// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultQueueCapacity bounds in-flight packets between the delivery path
// and the encode worker.
const DefaultQueueCapacity = 128

// IngestQueue is the hand-off between packet producers and the single
// encode worker. Offer never blocks: when the queue is full the packet is
// rejected and counted, so upstream media routing never sees backpressure.
type IngestQueue struct {
	items    chan *Packet
	rejected atomic.Uint64

	log zerolog.Logger
}

func NewIngestQueue(capacity int) *IngestQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &IngestQueue{
		items: make(chan *Packet, capacity),
		log:   log.With().Str("caller", "IngestQueue").Logger(),
	}
}

// Offer enqueues pkt for the worker. Returns false when the queue is full,
// in which case the caller keeps ownership of the packet.
func (q *IngestQueue) Offer(pkt *Packet) bool {
	select {
	case q.items <- pkt:
		metricPacketsEnqueued.Inc()
		return true
	default:
	}

	n := q.rejected.Add(1)
	metricQueueRejected.Inc()
	if n%100 == 1 {
		q.log.Warn().Uint64("rejected", n).Msg("Ingest queue full, dropping packet")
	}
	return false
}

// Items exposes the consumer side of the queue.
func (q *IngestQueue) Items() <-chan *Packet {
	return q.items
}

// Rejected reports how many packets were dropped on enqueue.
func (q *IngestQueue) Rejected() uint64 {
	return q.rejected.Load()
}
