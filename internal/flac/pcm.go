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

// Output byte formatting.
//
// Decoded samples sit in a planar working buffer, channel-major with a
// blockSize stride. The writers interleave them into little-endian PCM.
// Fast paths cover the common layouts; every path produces the same bytes
// as the general one.

// WriteMono16 writes 16-bit mono PCM.
func WriteMono16(out []byte, samples []int32, blockSize int) {
	for i := range blockSize {
		val := samples[i]

		dst := out[i*2 : i*2+2 : i*2+2]
		dst[0] = byte(val)
		dst[1] = byte(val >> 8)
	}
}

// WriteStereo16 writes 16-bit stereo PCM.
func WriteStereo16(out []byte, samples []int32, blockSize int) {
	for i := range blockSize {
		left := samples[i]
		right := samples[blockSize+i]

		dst := out[i*4 : i*4+4 : i*4+4]
		dst[0] = byte(left)
		dst[1] = byte(left >> 8)
		dst[2] = byte(right)
		dst[3] = byte(right >> 8)
	}
}

// WriteStereo24 writes 24-bit stereo PCM.
func WriteStereo24(out []byte, samples []int32, blockSize int) {
	for i := range blockSize {
		left := samples[i]
		right := samples[blockSize+i]

		dst := out[i*6 : i*6+6 : i*6+6]
		dst[0] = byte(left)
		dst[1] = byte(left >> 8)
		dst[2] = byte(left >> 16)
		dst[3] = byte(right)
		dst[4] = byte(right >> 8)
		dst[5] = byte(right >> 16)
	}
}

// WriteGeneral writes native-packed PCM for any channel count and depth.
// Samples whose depth is not a multiple of 8 are left-shifted into the high
// bits of their container; 8-bit output is offset to unsigned PCM.
//
//revive:disable-next-line:argument-limit
func WriteGeneral(out []byte, samples []int32, blockSize, channels, bytesPerSample int, shift, sampleDepth uint32) {
	pos := 0

	for i := range blockSize {
		for ch := range channels {
			sample := samples[ch*blockSize+i]

			if sampleDepth == 8 {
				sample += 128
			}

			sample <<= shift

			for byteIdx := range bytesPerSample {
				out[pos] = byte(sample >> (byteIdx * 8))
				pos++
			}
		}
	}
}

// WriteMono32 writes mono samples left-justified into 32-bit containers.
func WriteMono32(out []byte, samples []int32, blockSize int, shift uint32) {
	for i := range blockSize {
		val := samples[i] << shift

		dst := out[i*4 : i*4+4 : i*4+4]
		dst[0] = byte(val)
		dst[1] = byte(val >> 8)
		dst[2] = byte(val >> 16)
		dst[3] = byte(val >> 24)
	}
}

// WriteStereo32 writes stereo samples left-justified into 32-bit containers.
func WriteStereo32(out []byte, samples []int32, blockSize int, shift uint32) {
	for i := range blockSize {
		left := samples[i] << shift
		right := samples[blockSize+i] << shift

		dst := out[i*8 : i*8+8 : i*8+8]
		dst[0] = byte(left)
		dst[1] = byte(left >> 8)
		dst[2] = byte(left >> 16)
		dst[3] = byte(left >> 24)
		dst[4] = byte(right)
		dst[5] = byte(right >> 8)
		dst[6] = byte(right >> 16)
		dst[7] = byte(right >> 24)
	}
}

// WriteGeneral32 writes any channel count left-justified into 32-bit
// containers.
func WriteGeneral32(out []byte, samples []int32, blockSize, channels int, shift uint32) {
	pos := 0

	for i := range blockSize {
		for ch := range channels {
			val := samples[ch*blockSize+i] << shift

			dst := out[pos : pos+4 : pos+4]
			dst[0] = byte(val)
			dst[1] = byte(val >> 8)
			dst[2] = byte(val >> 16)
			dst[3] = byte(val >> 24)
			pos += 4
		}
	}
}
