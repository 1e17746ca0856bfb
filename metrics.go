// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPacketsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiofork_packets_enqueued_total",
		Help: "Packets accepted onto the ingest queue",
	})
	metricQueueRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiofork_queue_rejected_total",
		Help: "Packets rejected because the ingest queue was full",
	})
	metricFramesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiofork_frames_sent_total",
		Help: "Frames written to the recorder connection",
	})
	metricFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "audiofork_frames_dropped_total",
		Help: "Frames dropped because the recorder connection was not usable",
	})
)
