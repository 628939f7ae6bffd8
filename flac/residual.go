package flac

// decodeResidual reads the partitioned Rice-coded residual for a subframe
// and appends it into samples[order:blockSize], the tail following the
// warm-up samples already present in samples[0:order].
func decodeResidual(r *bitReader, samples []int64, order int, blockSize uint32) error {
	method, err := r.readUnsigned(2)
	if err != nil {
		return wrapErr(ErrIO, "residual coding method truncated", err)
	}
	if method >= 2 {
		return newErr(ErrMalformedResidual, "reserved residual coding method")
	}
	paramBits := uint8(4)
	escape := uint64(0xF)
	if method == 1 {
		paramBits = 5
		escape = 0x1F
	}

	partOrder, err := r.readUnsigned(4)
	if err != nil {
		return wrapErr(ErrIO, "partition order truncated", err)
	}
	nParts := uint32(1) << partOrder

	if partOrder > 0 && blockSize%nParts != 0 {
		return newErr(ErrMalformedResidual, "partition count does not divide block size")
	}
	if partOrder > 0 && blockSize/nParts < uint32(order) {
		return newErr(ErrMalformedResidual, "first partition sample count is negative")
	}
	if partOrder == 0 && blockSize < uint32(order) {
		return newErr(ErrMalformedResidual, "first partition sample count is negative")
	}

	idx := order
	for part := uint32(0); part < nParts; part++ {
		var n uint32
		switch {
		case partOrder == 0:
			n = blockSize - uint32(order)
		case part == 0:
			n = blockSize/nParts - uint32(order)
		default:
			n = blockSize / nParts
		}

		param, err := r.readUnsigned(paramBits)
		if err != nil {
			return wrapErr(ErrIO, "rice parameter truncated", err)
		}

		if param == escape {
			width, err := r.readUnsigned(5)
			if err != nil {
				return wrapErr(ErrIO, "escaped residual width truncated", err)
			}
			for i := uint32(0); i < n; i++ {
				v, err := r.readSigned(uint8(width))
				if err != nil {
					return wrapErr(ErrIO, "escaped residual truncated", err)
				}
				samples[idx] = v
				idx++
			}
			continue
		}

		for i := uint32(0); i < n; i++ {
			v, err := readRiceSigned(r, uint8(param))
			if err != nil {
				return err
			}
			samples[idx] = v
			idx++
		}
	}

	if idx != int(blockSize) {
		return newErr(ErrInvariantViolation, "residual decode produced wrong sample count")
	}

	return nil
}
