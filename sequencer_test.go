// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audiofork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtendedSequenceNumberWrapping(t *testing.T) {
	var realSeq uint16 = (1<<16 - 1)
	seq := ExtendedSequenceNumber{}
	seq.InitSeq(realSeq)

	realSeq++
	require.NoError(t, seq.UpdateSeq(realSeq))

	assert.Equal(t, uint64(1<<16), seq.ReadExtendedSeq())
}

func TestExtendedSequenceNumberMisorder(t *testing.T) {
	seq := ExtendedSequenceNumber{}
	seq.InitSeq(100)

	require.NoError(t, seq.UpdateSeq(101))
	require.NoError(t, seq.UpdateSeq(102))

	// Stale packet within the misorder window does not move the index back
	err := seq.UpdateSeq(101)
	assert.ErrorIs(t, err, ErrSequenceDuplicate)
	assert.Equal(t, uint64(102), seq.ReadExtendedSeq())
}

func TestExtendedSequenceNumberLargeJump(t *testing.T) {
	seq := ExtendedSequenceNumber{}
	seq.InitSeq(100)

	// First sighting of a big jump is rejected
	err := seq.UpdateSeq(30000)
	assert.ErrorIs(t, err, ErrSequenceBad)
	assert.Equal(t, uint64(100), seq.ReadExtendedSeq())

	// Second consecutive confirms the restart
	require.NoError(t, seq.UpdateSeq(30001))
	assert.Equal(t, uint64(30001), seq.ReadExtendedSeq())
}
