// Package streambuf pairs a flac.Decoder with a single consumer (a
// playback sink, a WAV writer, a test harness) across a lock-free
// single-producer/single-consumer byte queue, the pattern recommended for
// decoupling decode from playback: one producer goroutine calls
// DecodeFrame and pushes interleaved PCM bytes; one consumer goroutine
// drains them at its own pace.
package streambuf

import (
	"encoding/binary"
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/drgolem/ringbuffer"
)

// ErrClosed is returned by Push after Close and by Pull once the queue is
// closed and drained.
var ErrClosed = errors.New("streambuf: queue closed")

// Queue is a single-producer/single-consumer byte queue backed by a
// lock-free ring buffer. The zero value is not usable; use New.
type Queue struct {
	rb     *ringbuffer.RingBuffer
	mu     sync.Mutex // guards cond; Push writes to rb without it and locks only to broadcast
	cond   *sync.Cond
	closed atomic.Bool
}

// New creates a Queue with room for capacityBytes bytes of buffered audio.
func New(capacityBytes int) *Queue {
	q := &Queue{rb: ringbuffer.New(capacityBytes)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PushSamples encodes samples as little-endian values of the given byte
// width (1, 2, 3, or 4, matching 8/16/24/32-bit PCM) and pushes the
// resulting bytes, blocking until the ring buffer has room.
func (q *Queue) PushSamples(samples []int64, bytesPerSample int) error {
	buf := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		off := i * bytesPerSample
		switch bytesPerSample {
		case 1:
			buf[off] = byte(s)
		case 2:
			binary.LittleEndian.PutUint16(buf[off:], uint16(s))
		case 3:
			buf[off] = byte(s)
			buf[off+1] = byte(s >> 8)
			buf[off+2] = byte(s >> 16)
		case 4:
			binary.LittleEndian.PutUint32(buf[off:], uint32(s))
		}
	}
	return q.Push(buf)
}

// Push writes p into the queue, blocking in small retries while the ring
// buffer is full. It returns ErrClosed if the queue has been closed.
func (q *Queue) Push(p []byte) error {
	for len(p) > 0 {
		if q.closed.Load() {
			return ErrClosed
		}
		n, err := q.rb.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
		if len(p) > 0 {
			q.cond.L.Lock()
			q.cond.Broadcast()
			q.cond.L.Unlock()
			runtime.Gosched()
		}
	}
	q.cond.L.Lock()
	q.cond.Broadcast()
	q.cond.L.Unlock()
	return nil
}

// Pull reads up to len(p) bytes, blocking until at least one byte is
// available or the queue is closed and drained (which returns io.EOF).
// Gating the read on AvailableRead mirrors the ring buffer's own
// recommended usage: Read is only called once bytes are known to be
// present, rather than relying on its return value to signal "empty".
func (q *Queue) Pull(p []byte) (int, error) {
	q.cond.L.Lock()
	defer q.cond.L.Unlock()
	for {
		if q.rb.AvailableRead() > 0 {
			n, err := q.rb.Read(p)
			if err != nil {
				return 0, err
			}
			if n > 0 {
				return n, nil
			}
		}
		if q.closed.Load() && q.rb.AvailableRead() == 0 {
			return 0, io.EOF
		}
		q.cond.Wait()
	}
}

// Close marks the queue closed: pending Pushes fail with ErrClosed and
// Pull returns io.EOF once the buffered bytes are drained.
func (q *Queue) Close() {
	q.closed.Store(true)
	q.cond.L.Lock()
	q.cond.Broadcast()
	q.cond.L.Unlock()
}

// AvailableRead reports how many bytes are currently buffered.
func (q *Queue) AvailableRead() int {
	return q.rb.AvailableRead()
}
