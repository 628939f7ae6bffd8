package flac

import (
	"bufio"
	"errors"
	"io"

	"github.com/icza/bitio"
)

// bitReader presents a MSB-first view over a byte source, built on
// bitio.Reader the way the real FLAC decoders in the ecosystem do.
type bitReader struct {
	br   *bitio.Reader
	buf  *bufio.Reader
	tees []func(byte)
}

func newBitReader(r io.Reader) *bitReader {
	br := &bitReader{}
	buf := bufio.NewReader(r)
	br.br = bitio.NewReader(&teeSource{buf: buf, br: br})
	br.buf = buf
	return br
}

// teeSource sits directly below bitio.Reader and forwards every byte
// bitio actually consumes (one at a time, in logical bit-stream order) to
// the bit reader's registered tee callbacks (CRC-8/CRC-16 digests). bitio
// pulls bytes one at a time via ReadByte even when its backing reader
// buffers ahead, so this is the correct point to tap for a checksum span
// that starts and stops mid-stream — tapping the raw source below bufio
// would fire tee callbacks for however many bytes bufio prefetches at
// once, not for the bytes logically read at that point.
type teeSource struct {
	buf *bufio.Reader
	br  *bitReader
}

func (t *teeSource) Read(p []byte) (int, error) {
	n, err := t.buf.Read(p)
	t.feed(p[:n])
	return n, err
}

func (t *teeSource) ReadByte() (byte, error) {
	b, err := t.buf.ReadByte()
	if err == nil {
		t.feed([]byte{b})
	}
	return b, err
}

func (t *teeSource) feed(p []byte) {
	for _, fn := range t.br.tees {
		for _, b := range p {
			fn(b)
		}
	}
}

// withTee registers fn to receive every raw byte consumed from the source
// until the returned function is called to unregister it.
func (r *bitReader) withTee(fn func(byte)) (remove func()) {
	r.tees = append(r.tees, fn)
	idx := len(r.tees) - 1
	return func() {
		r.tees = append(r.tees[:idx], r.tees[idx+1:]...)
	}
}

// readUnsigned reads n bits, 0 <= n <= 64, MSB first.
func (r *bitReader) readUnsigned(n uint8) (uint64, error) {
	if n == 0 {
		return 0, nil
	}
	u, err := r.br.ReadBits(n)
	if err != nil {
		return 0, r.unexpected(err)
	}
	return u, nil
}

// readSigned reads n bits as a two's-complement signed integer.
func (r *bitReader) readSigned(n uint8) (int64, error) {
	u, err := r.readUnsigned(n)
	if err != nil {
		return 0, err
	}
	if n == 0 || n == 64 {
		return int64(u), nil
	}
	if u&(1<<(n-1)) != 0 {
		u -= 1 << n
	}
	return int64(u), nil
}

// readByte is a byte-aligned convenience read.
func (r *bitReader) readByte() (byte, error) {
	b, err := r.br.ReadByte()
	if err != nil {
		return 0, r.unexpected(err)
	}
	return b, nil
}

// readBool reads a single bit as a boolean.
func (r *bitReader) readBool() (bool, error) {
	b, err := r.br.ReadBool()
	if err != nil {
		return false, r.unexpected(err)
	}
	return b, nil
}

// alignToByte drops any buffered bits short of the next byte boundary.
func (r *bitReader) alignToByte() uint8 {
	return r.br.Align()
}

// peekEOF reports whether the underlying source has no more bytes,
// without consuming any. Only valid when called on a byte boundary.
func (r *bitReader) peekEOF() bool {
	_, err := r.buf.Peek(1)
	return err != nil
}

// readFull reads len(p) raw bytes; requires byte alignment.
func (r *bitReader) readFull(p []byte) error {
	_, err := io.ReadFull(r.br, p)
	if err != nil {
		return r.unexpected(err)
	}
	return nil
}

// skip discards n raw bytes; requires byte alignment.
func (r *bitReader) skip(n int64) error {
	_, err := io.CopyN(io.Discard, r.br, n)
	if err != nil {
		return r.unexpected(err)
	}
	return nil
}

func (r *bitReader) unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
