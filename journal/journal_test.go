package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.aimuz.me/signal/audiostream"
)

func openMemory(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("", time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndList(t *testing.T) {
	j := openMemory(t)
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	// Out of order and past 9 to check numeric ordering.
	for _, seq := range []int{10, 2, 1} {
		require.NoError(t, j.Record("s1", audiostream.Clip{
			Seq:        seq,
			MIMEType:   "audio/webm;codecs=opus",
			Data:       []byte{byte(seq)},
			CapturedAt: at,
			Duration:   3 * time.Second,
		}))
	}
	require.NoError(t, j.Record("s2", audiostream.Clip{Seq: 1, Data: []byte{9}}))

	entries, err := j.List("s1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{entries[0].Seq, entries[1].Seq, entries[2].Seq})
	assert.Equal(t, []byte{10}, entries[2].Data)
	assert.Equal(t, "s1", entries[0].SessionID)
	assert.True(t, entries[0].CapturedAt.Equal(at))
	assert.Equal(t, 3*time.Second, entries[0].Duration)

	ids, err := j.Sessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, ids)
}

func TestListUnknownSession(t *testing.T) {
	j := openMemory(t)
	_, err := j.List("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSessionPrefixIsolation(t *testing.T) {
	j := openMemory(t)
	require.NoError(t, j.Record("ab", audiostream.Clip{Seq: 1}))
	require.NoError(t, j.Record("abc", audiostream.Clip{Seq: 1}))

	entries, err := j.List("ab")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
