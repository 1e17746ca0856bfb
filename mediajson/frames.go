// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

// Package mediajson implements the MediaJSON recorder frame protocol.
// Frames are self-describing JSON objects sent as websocket text messages,
// one frame per message. Consumers only need Marshal output, the pipeline
// treats frames as opaque bytes once serialized.
package mediajson

import (
	"encoding/json"
)

const (
	TypeStart = "start"
	TypeMedia = "media"
)

// Format describes the audio payload carried by a track.
type Format struct {
	Encoding   string `json:"encoding"`
	SampleRate uint32 `json:"sampleRate"`
	Channels   uint8  `json:"channels"`
}

// FormatOpus is the only format produced by the export pipeline. Payloads
// pass through without transcoding, so sampleRate here is the session tick
// rate, not necessarily the source's native rate.
var FormatOpus = Format{
	Encoding:   "opus",
	SampleRate: 48000,
	Channels:   2,
}

// StartFrame announces a new track. Emitted exactly once per track, before
// the first MediaFrame of that track.
type StartFrame struct {
	Type       string `json:"type"`
	Seq        uint64 `json:"seq"`
	TrackID    string `json:"trackId"`
	Format     Format `json:"format"`
	EndpointID string `json:"endpointId"`
}

func NewStartFrame(seq uint64, trackID string, endpointID string, f Format) StartFrame {
	return StartFrame{
		Type:       TypeStart,
		Seq:        seq,
		TrackID:    trackID,
		Format:     f,
		EndpointID: endpointID,
	}
}

func (f StartFrame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}

// MediaFrame carries one media payload. Index is the rollover-resolved
// packet index within the track. Timestamp is expressed in session ticks
// and may be negative when a source delivers reordered packets around its
// track start.
type MediaFrame struct {
	Type      string `json:"type"`
	Seq       uint64 `json:"seq"`
	TrackID   string `json:"trackId"`
	Index     uint64 `json:"index"`
	Timestamp int64  `json:"timestamp"`
	Payload   []byte `json:"payload"`
}

func NewMediaFrame(seq uint64, trackID string, index uint64, timestamp int64, payload []byte) MediaFrame {
	return MediaFrame{
		Type:      TypeMedia,
		Seq:       seq,
		TrackID:   trackID,
		Index:     index,
		Timestamp: timestamp,
		Payload:   payload,
	}
}

func (f MediaFrame) Marshal() ([]byte, error) {
	return json.Marshal(f)
}
