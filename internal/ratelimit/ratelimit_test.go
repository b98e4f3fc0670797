package ratelimit

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, New(1024))
	assert.NotNil(t, New(1))
	assert.Nil(t, New(0), "zero is unlimited")
	assert.Nil(t, New(-1), "negative is unlimited")
}

func TestNilLimitersPassThrough(t *testing.T) {
	t.Parallel()
	r := bytes.NewReader([]byte("data"))
	assert.Same(t, r, NewReader(r))
	assert.Same(t, r, NewReader(r, nil, nil))

	var buf bytes.Buffer
	assert.Same(t, &buf, NewWriter(&buf, nil))

	var l *Limiter
	assert.NoError(t, l.wait(1<<20))
}

func TestReaderKeepsData(t *testing.T) {
	t.Parallel()
	data := bytes.Repeat([]byte{0, 1, 2, 0xff}, 10000)
	got, err := io.ReadAll(NewReader(bytes.NewReader(data), New(1<<30)))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriterKeepsData(t *testing.T) {
	t.Parallel()
	data := bytes.Repeat([]byte("abc\r\n"), 10000)
	var buf bytes.Buffer
	n, err := NewWriter(&buf, New(1<<30)).Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf.Bytes())
}

func TestReaderThrottles(t *testing.T) {
	t.Parallel()
	// One second of burst is free; the remaining 30000 bytes need 1.5s.
	data := make([]byte, 50000)
	start := time.Now()
	got, err := io.ReadAll(NewReader(bytes.NewReader(data), New(20000)))
	require.NoError(t, err)
	assert.Len(t, got, len(data))
	assert.GreaterOrEqual(t, time.Since(start), 1200*time.Millisecond)
}

func TestWriterUsesSlowestLimiter(t *testing.T) {
	t.Parallel()
	data := make([]byte, 50000)
	start := time.Now()
	_, err := NewWriter(io.Discard, New(1<<30), New(20000)).Write(data)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 1200*time.Millisecond)
}
