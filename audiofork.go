// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

// Package audiofork taps audio packets out of a media router and exports
// them as MediaJSON frames over a persistent websocket connection to an
// external recorder. Export is best effort: frames are silently dropped
// while the connection is down and the pipeline never blocks the packet
// delivery path.
package audiofork

import (
	"time"
)

// TickRate is the fixed clock used for all output timestamps. Every source
// is placed on this common session timeline regardless of its native
// sampling rate.
const TickRate = 48000

// durationToTicks converts elapsed wall time into session ticks.
func durationToTicks(d time.Duration) int64 {
	return int64(d) * TickRate / int64(time.Second)
}
