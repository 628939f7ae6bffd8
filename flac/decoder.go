// Package flac implements a pure Go FLAC (Free Lossless Audio Codec) frame
// decoder: the bit-level parser, the subframe decoders (CONSTANT,
// VERBATIM, FIXED, LPC), the Rice-coded residual decoder, the predictor
// reconstruction, and the inter-channel decorrelation step. Decoding is
// pull-driven: construct a Decoder, call Initialize once, then call
// DecodeFrame repeatedly until Eos reports true.
package flac

import "io"

// Option configures a Decoder at construction time.
type Option func(*Decoder)

// WithCRCVerification toggles header CRC-8 and frame CRC-16 verification.
// Verification is enabled by default; disabling it trades correctness
// checking for throughput, as permitted by the format.
func WithCRCVerification(enabled bool) Option {
	return func(d *Decoder) {
		d.verifyCRC = enabled
	}
}

// Decoder holds stream-wide state (StreamInfo, VorbisComment, a position
// cursor) and per-frame scratch state (channel buffers). It is
// single-threaded and stateful: no concurrent use of one Decoder is
// allowed, and every error is fatal — a new Decoder is required to
// recover.
type Decoder struct {
	r         *bitReader
	verifyCRC bool

	streamInfo    *StreamInfo
	vorbisComment *VorbisComment

	frameInfo   FrameInfo
	audioBuffer []int64

	sampleCursor uint64
	eos          bool
	err          error
}

// NewDecoder constructs a Decoder over r. Call Initialize before the first
// DecodeFrame.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{
		r:         newBitReader(r),
		verifyCRC: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initialize reads the "fLaC" marker and every metadata block up to and
// including the one marked "last". After it returns, StreamInfo and
// VorbisComment are populated and the decoder sits at the first frame.
func (d *Decoder) Initialize() error {
	if err := readMarker(d.r); err != nil {
		d.err = err
		return err
	}
	si, vc, err := readMetadataBlocks(d.r)
	if err != nil {
		d.err = err
		return err
	}
	d.streamInfo = si
	d.vorbisComment = vc
	return nil
}

// StreamInfo returns the stream-wide STREAMINFO block. Valid after
// Initialize.
func (d *Decoder) StreamInfo() *StreamInfo {
	return d.streamInfo
}

// VorbisComment returns the optional VORBIS_COMMENT block, or nil if the
// stream did not carry one.
func (d *Decoder) VorbisComment() *VorbisComment {
	return d.vorbisComment
}

// FrameInfo returns the most recently decoded frame's header fields.
func (d *Decoder) FrameInfo() FrameInfo {
	return d.frameInfo
}

// AudioBuffer returns the most recently decoded frame's PCM samples,
// interleaved in channel order. Samples are widened past int32 because a
// joint-stereo side channel at 32-bit depth carries 33 significant bits.
// The slice is owned by the Decoder and is overwritten by the next
// DecodeFrame call; callers must consume or copy it first.
func (d *Decoder) AudioBuffer() []int64 {
	return d.audioBuffer
}

// Eos reports whether the underlying byte source is exhausted at a frame
// boundary. Once true, DecodeFrame must not be called again.
func (d *Decoder) Eos() bool {
	return d.eos
}

// DecodeFrame decodes exactly one frame: the header, then one subframe per
// channel, then decorrelation and interleave, then the frame's CRC-16
// footer. Precondition: !Eos(). Postcondition on success:
// len(AudioBuffer()) == FrameInfo().BlockSize * channels.
func (d *Decoder) DecodeFrame() error {
	if d.err != nil {
		return d.err
	}
	if d.eos {
		return newErr(ErrInvariantViolation, "DecodeFrame called after Eos")
	}
	if d.r.peekEOF() {
		d.eos = true
		return io.EOF
	}

	var crc16 crc16Digest
	removeCRC16 := d.r.withTee(crc16.update)
	crc16Removed := false
	defer func() {
		if !crc16Removed {
			removeCRC16()
		}
	}()

	fi, err := readFrameHeader(d.r, d.streamInfo, d.verifyCRC)
	if err != nil {
		d.err = err
		return err
	}

	if fi.BlockSize < uint32(d.streamInfo.MinBlockSize) || fi.BlockSize > uint32(d.streamInfo.MaxBlockSize) {
		err := newErr(ErrInvariantViolation, "frame block size outside STREAMINFO range")
		d.err = err
		return err
	}

	nch := fi.Channels.channelCount()
	channels := make([][]int64, nch)
	for c := 0; c < nch; c++ {
		bps := subframeBitsPerSample(fi.Channels, c, fi.BitsPerSample)
		sf, err := decodeSubframe(d.r, fi.BlockSize, bps)
		if err != nil {
			d.err = err
			return err
		}
		if uint32(len(sf.Samples)) != fi.BlockSize {
			err := newErr(ErrInvariantViolation, "subframe sample count does not match block size")
			d.err = err
			return err
		}
		channels[c] = sf.Samples
	}

	decorrelate(fi.Channels, channels)

	d.audioBuffer = make([]int64, int(fi.BlockSize)*nch)
	interleave(channels, d.audioBuffer)

	d.r.alignToByte()

	removeCRC16()
	crc16Removed = true
	frameCRC, err := d.r.readUnsigned(16)
	if err != nil {
		err = wrapErr(ErrIO, "frame footer CRC-16 truncated", err)
		d.err = err
		return err
	}
	if d.verifyCRC && uint16(frameCRC) != crc16.sum {
		err := newErr(ErrMalformedFrameHeader, "frame CRC-16 mismatch")
		d.err = err
		return err
	}

	d.frameInfo = *fi
	d.sampleCursor += uint64(fi.BlockSize)

	if d.r.peekEOF() {
		d.eos = true
	}

	return nil
}
