package flac

import "bytes"

// testBitWriter is a minimal MSB-first bit writer used only to build
// synthetic FLAC bitstreams for this package's tests. Decoding has no
// write path of its own (encoding is out of scope), so fixtures are
// assembled directly rather than produced by round-tripping an encoder.
type testBitWriter struct {
	buf      bytes.Buffer
	current  uint64
	bitCount int
}

func (bw *testBitWriter) writeBits(value uint64, n int) {
	if n == 0 {
		return
	}
	bw.current = (bw.current << uint(n)) | (value & (1<<uint(n) - 1))
	bw.bitCount += n
	for bw.bitCount >= 8 {
		bw.bitCount -= 8
		bw.buf.WriteByte(byte(bw.current >> uint(bw.bitCount)))
		bw.current &= 1<<uint(bw.bitCount) - 1
	}
}

func (bw *testBitWriter) writeSigned(value int64, n int) {
	bw.writeBits(uint64(value)&(1<<uint(n)-1), n)
}

func (bw *testBitWriter) writeUnary(zeros uint32) {
	for i := uint32(0); i < zeros; i++ {
		bw.writeBits(0, 1)
	}
	bw.writeBits(1, 1)
}

func (bw *testBitWriter) writeUTF8(value uint64) {
	switch {
	case value < 0x80:
		bw.writeBits(value, 8)
	case value < 0x800:
		bw.writeBits(0xC0|(value>>6), 8)
		bw.writeBits(0x80|(value&0x3F), 8)
	case value < 0x10000:
		bw.writeBits(0xE0|(value>>12), 8)
		bw.writeBits(0x80|((value>>6)&0x3F), 8)
		bw.writeBits(0x80|(value&0x3F), 8)
	case value < 0x200000:
		bw.writeBits(0xF0|(value>>18), 8)
		bw.writeBits(0x80|((value>>12)&0x3F), 8)
		bw.writeBits(0x80|((value>>6)&0x3F), 8)
		bw.writeBits(0x80|(value&0x3F), 8)
	default:
		bw.writeBits(0xFE, 8)
		for shift := 30; shift >= 0; shift -= 6 {
			bw.writeBits(0x80|((value>>uint(shift))&0x3F), 8)
		}
	}
}

func (bw *testBitWriter) alignToByte() {
	if bw.bitCount > 0 {
		bw.writeBits(0, 8-bw.bitCount)
	}
}

func (bw *testBitWriter) bytes() []byte {
	return bw.buf.Bytes()
}

// writeStreamInfoBlock appends a complete "fLaC" marker plus a single,
// last, STREAMINFO metadata block.
func writeStreamInfoBlock(bw *testBitWriter, si StreamInfo) {
	bw.buf.WriteString("fLaC")
	bw.writeBits(1, 1) // last block
	bw.writeBits(blockTypeStreamInfo, 7)
	bw.writeBits(34, 24) // STREAMINFO is always 34 bytes
	bw.writeBits(uint64(si.MinBlockSize), 16)
	bw.writeBits(uint64(si.MaxBlockSize), 16)
	bw.writeBits(uint64(si.MinFrameSize), 24)
	bw.writeBits(uint64(si.MaxFrameSize), 24)
	bw.writeBits(uint64(si.SampleRate), 20)
	bw.writeBits(uint64(si.NChannels-1), 3)
	bw.writeBits(uint64(si.BitsPerSample-1), 5)
	bw.writeBits(si.NSamples, 36)
	for _, b := range si.MD5Sum {
		bw.writeBits(uint64(b), 8)
	}
}

// frameHeaderSpec is the set of fields a test needs to control when
// synthesizing one frame header; everything else follows fixed,
// unsurprising choices (fixed blocking strategy, explicit block/rate
// codes via the 16-bit escape so tests don't have to reverse-engineer the
// code tables).
type frameHeaderSpec struct {
	blockSize     uint32
	sampleRate    uint32
	channels      ChannelAssignment
	bitsPerSample uint8
	frameNumber   uint64
}

// writeFrameHeader appends one frame header (fixed blocking strategy,
// 16-bit block-size and sample-rate escapes) with a correct CRC-8. It
// returns nothing; callers that need the frame CRC-16 record the buffer
// offset before calling it and pass that to finishFrame.
func writeFrameHeader(bw *testBitWriter, spec frameHeaderSpec) {
	start := bw.buf.Len()
	bw.writeBits(syncCode, 14)
	bw.writeBits(0, 1) // reserved
	bw.writeBits(0, 1) // fixed blocking strategy
	bw.writeBits(7, 4) // block size code: escape, 16-bit follows
	bw.writeBits(13, 4) // sample rate code: escape, 16-bit follows
	bw.writeBits(uint64(spec.channels), 4)
	bw.writeBits(sampleSizeCodeFor(spec.bitsPerSample), 3)
	bw.writeBits(0, 1) // reserved
	bw.writeUTF8(spec.frameNumber)
	bw.writeBits(uint64(spec.blockSize-1), 16)
	bw.writeBits(uint64(spec.sampleRate), 16)

	var crc crc8Digest
	crc.updateAll(bw.buf.Bytes()[start:])
	bw.writeBits(uint64(crc.sum), 8)
}

func sampleSizeCodeFor(bps uint8) uint64 {
	switch bps {
	case 8:
		return 1
	case 12:
		return 2
	case 16:
		return 4
	case 20:
		return 5
	case 24:
		return 6
	case 32:
		return 7
	default:
		panic("unsupported bits-per-sample in test fixture")
	}
}

// finishFrame appends the CRC-16 footer over everything written since
// frameStart.
func finishFrame(bw *testBitWriter, frameStart int) {
	bw.alignToByte()
	var crc crc16Digest
	crc.updateAll(bw.buf.Bytes()[frameStart:])
	bw.writeBits(uint64(crc.sum), 16)
}
