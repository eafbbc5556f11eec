package ratelimit

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNonPositiveRateReturnsNilLimiter(t *testing.T) {
	cases := []struct {
		name           string
		bytesPerSecond int64
		wantNil        bool
	}{
		{"positive rate", 1024, false},
		{"zero means unlimited", 0, true},
		{"negative means unlimited", -1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := New(tc.bytesPerSecond)
			if tc.wantNil {
				assert.Nil(t, l)
			} else {
				assert.NotNil(t, l)
			}
		})
	}
}

func TestNewReaderNilLimiterReturnsOriginal(t *testing.T) {
	r := bytes.NewReader([]byte("passthrough"))
	assert.Same(t, io.Reader(r), NewReader(r, nil))
}

func TestNewWriterNilLimiterReturnsOriginal(t *testing.T) {
	var buf bytes.Buffer
	assert.Same(t, io.Writer(&buf), NewWriter(&buf, nil))
}

// TestLimiterBurstAllowsImmediateTransferUpToRate exercises New's burst
// sizing (one second of the configured rate, per Limiter's doc comment):
// a transfer no larger than the configured bytes-per-second should drain
// entirely from the initial burst, with no throttling wait.
func TestLimiterBurstAllowsImmediateTransferUpToRate(t *testing.T) {
	const rate = 4096
	data := bytes.Repeat([]byte{0x42}, rate)
	r := NewReader(bytes.NewReader(data), New(rate))

	start := time.Now()
	got, err := io.ReadAll(r)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Less(t, elapsed, 200*time.Millisecond, "a transfer within the burst should not be throttled")
}

// TestLimiterThrottlesWriteBeyondBurst exercises the x/time/rate-backed
// Limiter's actual throttling behavior: once a write exceeds the burst,
// the writer must wait for the remainder at the configured rate.
func TestLimiterThrottlesWriteBeyondBurst(t *testing.T) {
	const rate = 2000 // bytes/sec, burst is also 2000 tokens
	const overflow = 1000
	data := bytes.Repeat([]byte{0x7}, rate+overflow)

	var buf bytes.Buffer
	w := NewWriter(&buf, New(rate))

	start := time.Now()
	n, err := w.Write(data)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf.Bytes())

	wantWait := time.Duration(overflow) * time.Second / time.Duration(rate)
	assert.GreaterOrEqual(t, elapsed, wantWait/2, "overflow bytes should be throttled, not transferred instantly")
	assert.Less(t, elapsed, 3*time.Second, "throttling should not stall far beyond the expected wait")
}

// TestReaderCapsSingleReadAtChunkSize pins reader's documented 8KiB
// per-call chunk cap: even with a very high rate limiter (so no
// meaningful wait occurs), a single Read of a larger buffer is satisfied
// only up to the chunk size, requiring the caller to loop — exactly the
// behavior io.Copy and io.ReadFull rely on.
func TestReaderCapsSingleReadAtChunkSize(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 20*1024)
	r := NewReader(bytes.NewReader(data), New(1<<30))

	buf := make([]byte, len(data))
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 8*1024, n)
}

// TestWriterPreservesDataAcrossChunkBoundary exercises the writer's
// internal 64KiB chunking loop: a write larger than one chunk must still
// land byte-for-byte in the underlying writer.
func TestWriterPreservesDataAcrossChunkBoundary(t *testing.T) {
	data := make([]byte, 150*1024)
	for i := range data {
		data[i] = byte(i % 256)
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, New(1<<30))

	n, err := w.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf.Bytes())
}

func TestUnlimitedTransferIsNotThrottled(t *testing.T) {
	data := bytes.Repeat([]byte{0x9}, 64*1024)
	r := NewReader(bytes.NewReader(data), nil)

	start := time.Now()
	got, err := io.ReadAll(r)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Less(t, elapsed, 100*time.Millisecond)
}
