package flac

// syncCode is the 14-bit marker that opens every frame.
const syncCode = 0x3FFE

// ChannelAssignment identifies how the frame's subframes combine into
// output channels.
type ChannelAssignment uint8

const (
	ChannelsLeftSide  ChannelAssignment = 8
	ChannelsRightSide ChannelAssignment = 9
	ChannelsMidSide   ChannelAssignment = 10
)

// channelCount returns the number of subframes (and output channels) a
// channel-assignment code implies.
func (ca ChannelAssignment) channelCount() int {
	if ca <= 7 {
		return int(ca) + 1
	}
	return 2
}

var fixedSampleRates = [12]uint32{
	0, // code 0 means "use STREAMINFO", handled separately
	88200, 176400, 192000, 8000, 16000, 22050, 24000, 32000, 44100, 48000, 96000,
}

// FrameInfo describes one decoded frame's header fields, reset per frame.
type FrameInfo struct {
	VariableBlockSize bool
	BlockSize         uint32
	SampleRate        uint32
	Channels          ChannelAssignment
	BitsPerSample     uint8
	FrameNumber       uint64 // valid when !VariableBlockSize
	SampleNumber      uint64 // valid when VariableBlockSize
	CRCHeaderOK       bool
}

// startSample reports the starting inter-channel sample index of the
// frame regardless of blocking strategy.
func (fi *FrameInfo) startSample() uint64 {
	if fi.VariableBlockSize {
		return fi.SampleNumber
	}
	return fi.FrameNumber * uint64(fi.BlockSize)
}

// readFrameHeader parses a frame header at a byte boundary. streamInfo is
// consulted only for the sample-rate/sample-size codes that defer to the
// stream-wide value. The header CRC-8 is always computed and reported in
// CRCHeaderOK; a mismatch is an error only when verifyCRC is set.
func readFrameHeader(r *bitReader, si *StreamInfo, verifyCRC bool) (*FrameInfo, error) {
	var crc crc8Digest
	remove := r.withTee(crc.update)
	defer func() {
		if remove != nil {
			remove()
		}
	}()

	sync, err := r.readUnsigned(14)
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header truncated", err)
	}
	if sync != syncCode {
		return nil, newErr(ErrMalformedFrameHeader, "bad sync code")
	}

	reserved1, err := r.readBool()
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header truncated", err)
	}
	if reserved1 {
		return nil, newErr(ErrMalformedFrameHeader, "reserved bit set")
	}

	variableBlockSize, err := r.readBool()
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header truncated", err)
	}

	blockSizeCode, err := r.readUnsigned(4)
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header truncated", err)
	}

	sampleRateCode, err := r.readUnsigned(4)
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header truncated", err)
	}

	channelCode, err := r.readUnsigned(4)
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header truncated", err)
	}
	if channelCode >= 11 {
		return nil, newErr(ErrMalformedFrameHeader, "reserved channel assignment code")
	}

	sampleSizeCode, err := r.readUnsigned(3)
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header truncated", err)
	}
	if sampleSizeCode == 3 {
		return nil, newErr(ErrMalformedFrameHeader, "reserved sample size code")
	}

	reserved2, err := r.readBool()
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header truncated", err)
	}
	if reserved2 {
		return nil, newErr(ErrMalformedFrameHeader, "reserved bit set")
	}

	num, err := readUTF8Uint64(r)
	if err != nil {
		return nil, err
	}

	fi := &FrameInfo{
		VariableBlockSize: variableBlockSize,
		Channels:          ChannelAssignment(channelCode),
	}
	if variableBlockSize {
		fi.SampleNumber = num
	} else {
		fi.FrameNumber = num
	}

	blockSize, err := decodeBlockSize(r, blockSizeCode)
	if err != nil {
		return nil, err
	}
	fi.BlockSize = blockSize

	sampleRate, err := decodeSampleRate(r, sampleRateCode, si)
	if err != nil {
		return nil, err
	}
	fi.SampleRate = sampleRate

	fi.BitsPerSample = decodeSampleSize(sampleSizeCode, si)

	remove()
	remove = nil
	crcByte, err := r.readByte()
	if err != nil {
		return nil, wrapErr(ErrIO, "frame header CRC truncated", err)
	}
	fi.CRCHeaderOK = crc.sum == crcByte
	if verifyCRC && !fi.CRCHeaderOK {
		return nil, newErr(ErrMalformedFrameHeader, "frame header CRC-8 mismatch")
	}

	return fi, nil
}

func decodeBlockSize(r *bitReader, code uint64) (uint32, error) {
	switch {
	case code == 0:
		return 0, newErr(ErrMalformedFrameHeader, "reserved block size code")
	case code == 1:
		return 192, nil
	case code >= 2 && code <= 5:
		return 576 * (1 << (code - 2)), nil
	case code == 6:
		v, err := r.readUnsigned(8)
		if err != nil {
			return 0, wrapErr(ErrIO, "block size truncated", err)
		}
		return uint32(v) + 1, nil
	case code == 7:
		v, err := r.readUnsigned(16)
		if err != nil {
			return 0, wrapErr(ErrIO, "block size truncated", err)
		}
		return uint32(v) + 1, nil
	default: // 8..15
		return 256 * (1 << (code - 8)), nil
	}
}

func decodeSampleRate(r *bitReader, code uint64, si *StreamInfo) (uint32, error) {
	switch {
	case code == 0:
		return si.SampleRate, nil
	case code >= 1 && code <= 11:
		return fixedSampleRates[code], nil
	case code == 12:
		v, err := r.readUnsigned(8)
		if err != nil {
			return 0, wrapErr(ErrIO, "sample rate truncated", err)
		}
		return uint32(v) * 1000, nil
	case code == 13:
		v, err := r.readUnsigned(16)
		if err != nil {
			return 0, wrapErr(ErrIO, "sample rate truncated", err)
		}
		return uint32(v), nil
	case code == 14:
		v, err := r.readUnsigned(16)
		if err != nil {
			return 0, wrapErr(ErrIO, "sample rate truncated", err)
		}
		return uint32(v) * 10, nil
	default: // 15
		return 0, newErr(ErrMalformedFrameHeader, "reserved sample rate code")
	}
}

func decodeSampleSize(code uint64, si *StreamInfo) uint8 {
	switch code {
	case 0:
		return si.BitsPerSample
	case 1:
		return 8
	case 2:
		return 12
	case 4:
		return 16
	case 5:
		return 20
	case 6:
		return 24
	case 7:
		return 32
	default:
		return 0 // unreachable: code 3 rejected by the caller
	}
}
