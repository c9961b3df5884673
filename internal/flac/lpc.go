/*
   Copyright Mycophonic.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

//nolint:gosec // Integer conversions match the FLAC format's fixed-width arithmetic.
package flac

import "math/bits"

// Linear prediction restoration with overflow-aware 32/64-bit dispatch.

// MaxLPCOrder is the maximum LPC predictor order (subframe type field).
const MaxLPCOrder = 32

// FixedCoefficients holds the predictor coefficients for fixed orders 0-4,
// oldest sample first.
//
//nolint:gochecknoglobals
var FixedCoefficients = [5][]int32{
	{},
	{1},
	{-1, 2},
	{1, -3, 3},
	{-1, 4, -6, 4},
}

// silog2 returns the number of bits needed to represent v as a signed
// integer, including the sign bit.
func silog2(v int64) uint32 {
	switch v {
	case 0:
		return 0
	case -1:
		return 2
	}

	var abs uint64
	if v < 0 {
		abs = uint64(-v)
	} else {
		abs = uint64(v)
	}

	return uint32(64-bits.LeadingZeros64(abs)) + 1
}

// maxPredictionBeforeShift bounds the magnitude of any prediction sum before
// the quantization shift: max |sample| times the sum of |coef|.
func maxPredictionBeforeShift(sampleDepth uint32, coefs []int32) uint64 {
	maxAbsSample := uint64(1) << (sampleDepth - 1)

	var absSum uint64
	for _, c := range coefs {
		if c < 0 {
			absSum += uint64(-c)
		} else {
			absSum += uint64(c)
		}
	}

	return maxAbsSample * absSum
}

// maxResidualBits bounds the signed bit width of any residual value.
func maxResidualBits(sampleDepth uint32, coefs []int32, shift int32) uint32 {
	maxAbsSample := uint64(1) << (sampleDepth - 1)
	maxPred := int64(maxPredictionBeforeShift(sampleDepth, coefs))
	maxPredAfterShift := uint64(-((-maxPred) >> shift))

	return silog2(int64(maxAbsSample + maxPredAfterShift))
}

// CanUse32BitLPC reports whether restoration with the given coefficients,
// sample depth, and quantization shift fits 32-bit arithmetic. When it
// returns false, Restore64 must be used. The dispatch is a correctness
// requirement, not an optimization.
func CanUse32BitLPC(sampleDepth uint32, coefs []int32, shift int32) bool {
	return maxResidualBits(sampleDepth, coefs, shift) <= 32 &&
		silog2(int64(maxPredictionBeforeShift(sampleDepth, coefs))) <= 32
}

// Restore32 reverses linear prediction in-place using 32-bit arithmetic.
// buf holds len(coefs) warm-up samples followed by residuals; coefs are
// ordered oldest sample first; shift is the quantization right shift.
func Restore32(buf []int32, coefs []int32, shift int32) {
	order := len(coefs)

	for i := 0; i < len(buf)-order; i++ {
		var sum int32
		for j, c := range coefs {
			sum += buf[i+j] * c
		}

		buf[i+order] += sum >> shift
	}
}

// Restore64 reverses linear prediction in-place using a 64-bit accumulator,
// safe for all valid streams.
func Restore64(buf []int32, coefs []int32, shift int32) {
	order := len(coefs)

	for i := 0; i < len(buf)-order; i++ {
		var sum int64
		for j, c := range coefs {
			sum += int64(buf[i+j]) * int64(c)
		}

		buf[i+order] += int32(sum >> shift)
	}
}
