package flac

import (
	"crypto/md5"
	"strings"
)

// metadata block types, per the FLAC format's block-type byte.
const (
	blockTypeStreamInfo    = 0
	blockTypePadding       = 1
	blockTypeApplication   = 2
	blockTypeSeekTable     = 3
	blockTypeVorbisComment = 4
	blockTypeCueSheet      = 5
	blockTypePicture       = 6
	blockTypeInvalid       = 127
)

// StreamInfo holds the mandatory first metadata block's fields.
type StreamInfo struct {
	MinBlockSize  uint16
	MaxBlockSize  uint16
	MinFrameSize  uint32
	MaxFrameSize  uint32
	SampleRate    uint32
	NChannels     uint8
	BitsPerSample uint8
	NSamples      uint64
	MD5Sum        [md5.Size]byte
}

// VorbisComment holds the vendor string and ordered comment list of the
// optional VORBIS_COMMENT metadata block.
type VorbisComment struct {
	Vendor string
	Tags   [][2]string

	// lookup is a case-folded key -> last-value map, built for consumer
	// convenience; spec.md's VorbisComment keeps both the ordered list and
	// this map.
	lookup map[string]string
}

// Get returns the last value associated with a case-insensitive key, and
// whether it was present.
func (vc *VorbisComment) Get(key string) (string, bool) {
	if vc == nil {
		return "", false
	}
	v, ok := vc.lookup[strings.ToLower(key)]
	return v, ok
}

func (vc *VorbisComment) addTag(key, value string) {
	vc.Tags = append(vc.Tags, [2]string{key, value})
	if vc.lookup == nil {
		vc.lookup = make(map[string]string)
	}
	vc.lookup[strings.ToLower(key)] = value
}

// readMarker checks the four-byte "fLaC" file marker.
func readMarker(r *bitReader) error {
	var marker [4]byte
	if err := r.readFull(marker[:]); err != nil {
		return wrapErr(ErrIO, "stream marker truncated", err)
	}
	if string(marker[:]) != "fLaC" {
		return newErr(ErrMalformedMarker, "missing fLaC marker")
	}
	return nil
}

// readMetadataBlocks reads the STREAMINFO block (mandatory, first) and then
// any sibling blocks up to and including the one marked "last". It returns
// the populated StreamInfo and, if present, VorbisComment.
func readMetadataBlocks(r *bitReader) (*StreamInfo, *VorbisComment, error) {
	isLast, blockType, length, err := readBlockHeader(r)
	if err != nil {
		return nil, nil, err
	}
	if blockType != blockTypeStreamInfo {
		return nil, nil, newErr(ErrMalformedMetadata, "first metadata block is not STREAMINFO")
	}
	if length != 34 {
		return nil, nil, newErr(ErrMalformedMetadata, "STREAMINFO has unexpected length")
	}
	si, err := readStreamInfo(r)
	if err != nil {
		return nil, nil, err
	}

	var vc *VorbisComment
	for !isLast {
		isLast, blockType, length, err = readBlockHeader(r)
		if err != nil {
			return nil, nil, err
		}
		switch blockType {
		case blockTypeVorbisComment:
			vc, err = readVorbisComment(r, length)
			if err != nil {
				return nil, nil, err
			}
		case blockTypeInvalid:
			return nil, nil, newErr(ErrMalformedMetadata, "invalid metadata block type 127")
		default:
			// PADDING, APPLICATION, SEEKTABLE, CUESHEET, PICTURE, and any
			// reserved (7..126) type are skipped without interpretation.
			if err := r.skip(int64(length)); err != nil {
				return nil, nil, err
			}
		}
	}

	return si, vc, nil
}

func readBlockHeader(r *bitReader) (isLast bool, blockType int, length uint32, err error) {
	isLast, err = r.readBool()
	if err != nil {
		return false, 0, 0, wrapErr(ErrIO, "metadata block header truncated", err)
	}
	bt, err := r.readUnsigned(7)
	if err != nil {
		return false, 0, 0, wrapErr(ErrIO, "metadata block header truncated", err)
	}
	ln, err := r.readUnsigned(24)
	if err != nil {
		return false, 0, 0, wrapErr(ErrIO, "metadata block header truncated", err)
	}
	return isLast, int(bt), uint32(ln), nil
}

func readStreamInfo(r *bitReader) (*StreamInfo, error) {
	si := &StreamInfo{}

	minBlock, err := r.readUnsigned(16)
	if err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO truncated", err)
	}
	maxBlock, err := r.readUnsigned(16)
	if err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO truncated", err)
	}
	minFrame, err := r.readUnsigned(24)
	if err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO truncated", err)
	}
	maxFrame, err := r.readUnsigned(24)
	if err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO truncated", err)
	}
	sampleRate, err := r.readUnsigned(20)
	if err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO truncated", err)
	}
	nChannels, err := r.readUnsigned(3)
	if err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO truncated", err)
	}
	bps, err := r.readUnsigned(5)
	if err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO truncated", err)
	}
	nSamples, err := r.readUnsigned(36)
	if err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO truncated", err)
	}
	if err := r.readFull(si.MD5Sum[:]); err != nil {
		return nil, wrapErr(ErrIO, "STREAMINFO MD5 truncated", err)
	}

	si.MinBlockSize = uint16(minBlock)
	si.MaxBlockSize = uint16(maxBlock)
	si.MinFrameSize = uint32(minFrame)
	si.MaxFrameSize = uint32(maxFrame)
	si.SampleRate = uint32(sampleRate)
	si.NChannels = uint8(nChannels) + 1
	si.BitsPerSample = uint8(bps) + 1
	si.NSamples = nSamples

	if si.MinBlockSize < 16 || si.MaxBlockSize < 16 {
		return nil, newErr(ErrMalformedMetadata, "STREAMINFO block size below minimum of 16")
	}
	if si.SampleRate == 0 {
		return nil, newErr(ErrMalformedMetadata, "STREAMINFO sample rate is zero")
	}

	return si, nil
}

func readVorbisComment(r *bitReader, length uint32) (*VorbisComment, error) {
	vc := &VorbisComment{}

	vendorLen, err := readUint32LE(r)
	if err != nil {
		return nil, err
	}
	vendor := make([]byte, vendorLen)
	if err := r.readFull(vendor); err != nil {
		return nil, wrapErr(ErrIO, "vorbis comment vendor string truncated", err)
	}
	vc.Vendor = string(vendor)

	nComments, err := readUint32LE(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nComments; i++ {
		commentLen, err := readUint32LE(r)
		if err != nil {
			return nil, err
		}
		raw := make([]byte, commentLen)
		if err := r.readFull(raw); err != nil {
			return nil, wrapErr(ErrIO, "vorbis comment entry truncated", err)
		}
		s := string(raw)
		if idx := strings.IndexByte(s, '='); idx >= 0 {
			vc.addTag(s[:idx], s[idx+1:])
		} else {
			vc.addTag(s, "")
		}
	}

	return vc, nil
}

// readUint32LE reads a little-endian 32-bit length field, as used inside
// the VORBIS_COMMENT block (unlike every other FLAC field, which is
// big-endian/MSB-first).
func readUint32LE(r *bitReader) (uint32, error) {
	var b [4]byte
	if err := r.readFull(b[:]); err != nil {
		return 0, wrapErr(ErrMalformedMetadata, "vorbis comment length truncated", err)
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}
