package tailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer_PushAndAfter(t *testing.T) {
	r := newRingBuffer(3)
	r.Push(OutboundMessage{Type: MsgEvents, Seq: 1})
	r.Push(OutboundMessage{Type: MsgEvents, Seq: 2})
	r.Push(OutboundMessage{Type: MsgEvents, Seq: 3})

	got := r.After(1)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)
}

func TestRingBuffer_EvictsOldestAtCapacity(t *testing.T) {
	r := newRingBuffer(2)
	r.Push(OutboundMessage{Type: MsgEvents, Seq: 1})
	r.Push(OutboundMessage{Type: MsgEvents, Seq: 2})
	r.Push(OutboundMessage{Type: MsgEvents, Seq: 3})

	min, ok := r.MinSeq()
	require.True(t, ok)
	assert.Equal(t, int64(2), min)

	got := r.After(0)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, int64(3), got[1].Seq)
}

func TestRingBuffer_MinSeqEmpty(t *testing.T) {
	r := newRingBuffer(5)
	_, ok := r.MinSeq()
	assert.False(t, ok)
}

func TestRingBuffer_CanReplay(t *testing.T) {
	r := newRingBuffer(3)
	assert.False(t, r.CanReplay(0), "empty buffer can never serve a replay")

	r.Push(OutboundMessage{Type: MsgEvents, Seq: 5})
	r.Push(OutboundMessage{Type: MsgEvents, Seq: 6})

	assert.True(t, r.CanReplay(5))
	assert.True(t, r.CanReplay(6))
	assert.False(t, r.CanReplay(4), "resumeAfterSeq below the oldest buffered seq cannot be served from the ring")
}
