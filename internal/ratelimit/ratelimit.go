// Package ratelimit throttles data connection streams to a number of bytes
// per second. It backs the server's global and per-session bandwidth caps.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// chunkSize bounds a single wait so that a large buffer is paced evenly
// instead of in one burst.
const chunkSize = 8 * 1024

// Limiter is a token bucket holding up to one second worth of bytes.
// A nil *Limiter does not throttle.
type Limiter struct {
	l *rate.Limiter
}

// New returns a Limiter for bytesPerSecond, or nil when bytesPerSecond is
// not positive.
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))}
}

// wait blocks until n bytes may pass.
func (l *Limiter) wait(n int) error {
	if l == nil {
		return nil
	}
	for n > 0 {
		step := min(n, l.l.Burst())
		if err := l.l.WaitN(context.Background(), step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

func compact(limiters []*Limiter) []*Limiter {
	var out []*Limiter
	for _, l := range limiters {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

type reader struct {
	r        io.Reader
	limiters []*Limiter
}

// NewReader paces reads from r against every non-nil limiter. With no
// limiters it returns r itself.
func NewReader(r io.Reader, limiters ...*Limiter) io.Reader {
	limiters = compact(limiters)
	if len(limiters) == 0 {
		return r
	}
	return &reader{r: r, limiters: limiters}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) > chunkSize {
		p = p[:chunkSize]
	}
	n, err := r.r.Read(p)
	for _, l := range r.limiters {
		if werr := l.wait(n); werr != nil && err == nil {
			err = werr
		}
	}
	return n, err
}

type writer struct {
	w        io.Writer
	limiters []*Limiter
}

// NewWriter paces writes to w against every non-nil limiter. With no
// limiters it returns w itself.
func NewWriter(w io.Writer, limiters ...*Limiter) io.Writer {
	limiters = compact(limiters)
	if len(limiters) == 0 {
		return w
	}
	return &writer{w: w, limiters: limiters}
}

func (w *writer) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := p[written:min(written+chunkSize, len(p))]
		for _, l := range w.limiters {
			if err := l.wait(len(chunk)); err != nil {
				return written, err
			}
		}
		n, err := w.w.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
