package flac

// fixedCoeffs holds the FIXED predictor coefficients for orders 1..4, the
// same constants used by every FLAC implementation, derived from
// successive differencing of a polynomial signal model.
var fixedCoeffs = [5][]int32{
	0: {},
	1: {1},
	2: {2, -1},
	3: {3, -3, 1},
	4: {4, -6, 4, -1},
}

// reconstructFixed applies one of the five fixed predictors in place.
// samples[0:order] holds the warm-up values; samples[order:] holds the
// residual, which this call turns into reconstructed samples.
func reconstructFixed(samples []int64, order int) {
	reconstructLPC(samples, fixedCoeffs[order], 0)
}

// reconstructLPC applies the general linear predictor in place.
// samples[0:len(coeffs)] holds the warm-up values; samples[len(coeffs):]
// holds the residual. The predictor sum accumulates in a 64-bit signed
// integer and is quantized by an arithmetic right shift; samples stay
// 64-bit end to end so a 33-bit joint-stereo side channel at 32-bit depth
// never gets truncated the way a narrower accumulator or sample type would.
func reconstructLPC(samples []int64, coeffs []int32, shift uint8) {
	order := len(coeffs)
	for i := order; i < len(samples); i++ {
		var sum int64
		for j, c := range coeffs {
			sum += int64(c) * samples[i-1-j]
		}
		samples[i] += sum >> shift
	}
}
