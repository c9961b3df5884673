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

//nolint:gosec // Field widths are fixed by the FLAC bitstream layout.
package flac

import (
	"github.com/mewkiz/pkg/hashutil/crc8"

	flacint "github.com/mycophonic/saprobe-flac/internal/flac"
)

// maxFrameHeaderLen bounds a frame header: 4 fixed bytes, up to 7 coded
// number bytes, up to 2 uncommon block size bytes, up to 2 uncommon sample
// rate bytes.
const maxFrameHeaderLen = 16

// sampleRateTable maps frame-header sample rate codes 1-11 to Hz.
//
//nolint:gochecknoglobals
var sampleRateTable = [11]uint32{
	88200, 176400, 192000, 8000, 16000, 22050, 24000, 32000, 44100, 48000, 96000,
}

// findFrameSync scans byte by byte for the frame sync code: 0xFF followed
// by a byte whose upper seven bits are 0b1111110. A 0xFF 0xFF pair
// reconsiders the second byte as the start of a new candidate. On success
// the two sync bytes have been consumed and frameStart holds the offset of
// the first.
func (d *Decoder) findFrameSync() (syncByte0, syncByte1 byte, err error) {
	d.br.AlignToByte()

	secondFF := false

	for {
		var cur uint32
		if secondFF {
			cur = 0xFF
			secondFF = false
		} else {
			cur = d.br.ReadAlignedByte()
		}

		if cur == 0xFF {
			next := d.br.ReadAlignedByte()

			switch {
			case next == 0xFF:
				secondFF = true
			case next>>1 == 0x7C:
				d.frameStart = d.br.Consumed() - 2

				return 0xFF, byte(next), nil
			}
		}

		if d.br.OutOfData() {
			return 0, 0, flacint.ErrSyncNotFound
		}
	}
}

// decodeFrameHeader parses the frame header following the sync code,
// verifies its CRC-8, and checks the coded parameters against STREAMINFO.
func (d *Decoder) decodeFrameHeader() error {
	var (
		rawHeader [maxFrameHeaderLen]byte
		headerLen int
	)

	syncByte0, syncByte1, err := d.findFrameSync()
	if err != nil {
		return err
	}

	rawHeader[headerLen] = syncByte0
	headerLen++
	rawHeader[headerLen] = syncByte1
	headerLen++

	// Block size and sample rate codes share the next byte. A 0xFF here
	// means the sync was spurious: the sync pattern cannot appear inside a
	// frame header.
	cur := d.br.ReadAlignedByte()
	if cur == 0xFF {
		return flacint.ErrSyncNotFound
	}

	rawHeader[headerLen] = byte(cur)
	headerLen++

	blockSizeCode := cur >> 4

	switch {
	case blockSizeCode == 0:
		return flacint.ErrBadBlockSizeCode
	case blockSizeCode == 1:
		d.frameBlockSize = 192
	case blockSizeCode <= 5:
		d.frameBlockSize = 576 << (blockSizeCode - 2)
	case blockSizeCode <= 7:
		// Uncommon size, parsed after the coded number.
	default:
		d.frameBlockSize = 256 << (blockSizeCode - 8)
	}

	sampleRateCode := cur & 0x0F

	// Channel assignment, sample depth, reserved bit.
	cur = d.br.ReadAlignedByte()
	if cur == 0xFF {
		return flacint.ErrSyncNotFound
	}

	rawHeader[headerLen] = byte(cur)
	headerLen++

	d.frameChannelAssign = cur >> 4

	depthCode := (cur & 0x0E) >> 1

	switch depthCode {
	case 0:
		d.frameSampleDepth = d.sampleDepth
	case 1:
		d.frameSampleDepth = 8
	case 2:
		d.frameSampleDepth = 12
	case 3:
		return flacint.ErrBadSampleDepth
	case 4:
		d.frameSampleDepth = 16
	case 5:
		d.frameSampleDepth = 20
	case 6:
		d.frameSampleDepth = 24
	case 7:
		d.frameSampleDepth = 32
	}

	// The reserved bit (cur & 0x01) is tolerated: some encoders set it.

	// Coded frame/sample number, a UTF-8-like prefix code of 1-7 bytes.
	// Seeking is unsupported, so the value is consumed without validation.
	next := d.br.ReadAlignedByte()
	rawHeader[headerLen] = byte(next)
	headerLen++

	for next >= 0b11000000 {
		cont := d.br.ReadAlignedByte()
		rawHeader[headerLen] = byte(cont)
		headerLen++

		next = (next << 1) & 0xFF
	}

	// Uncommon block size.
	switch blockSizeCode {
	case 6:
		sizeByte := d.br.ReadAlignedByte()
		rawHeader[headerLen] = byte(sizeByte)
		headerLen++

		d.frameBlockSize = sizeByte + 1
	case 7:
		hi := d.br.ReadAlignedByte()
		rawHeader[headerLen] = byte(hi)
		headerLen++

		lo := d.br.ReadAlignedByte()
		rawHeader[headerLen] = byte(lo)
		headerLen++

		d.frameBlockSize = (hi<<8 | lo) + 1
	}

	// Uncommon sample rate.
	var frameSampleRate uint32

	switch {
	case sampleRateCode == 0:
		frameSampleRate = d.sampleRate
	case sampleRateCode <= 11:
		frameSampleRate = sampleRateTable[sampleRateCode-1]
	case sampleRateCode == 12:
		rate := d.br.ReadAlignedByte()
		rawHeader[headerLen] = byte(rate)
		headerLen++

		frameSampleRate = rate * 1000
	case sampleRateCode == 13, sampleRateCode == 14:
		hi := d.br.ReadAlignedByte()
		rawHeader[headerLen] = byte(hi)
		headerLen++

		lo := d.br.ReadAlignedByte()
		rawHeader[headerLen] = byte(lo)
		headerLen++

		frameSampleRate = hi<<8 | lo
		if sampleRateCode == 14 {
			frameSampleRate *= 10
		}
	default:
		// Code 15 is invalid: it would allow sync-fooling strings of ones.
		return flacint.ErrBadHeader
	}

	if d.br.OutOfData() {
		return ErrIncompleteFrame
	}

	crcRead := d.br.ReadAlignedByte()

	if d.crcCheck {
		if crc8.ChecksumATM(rawHeader[:headerLen]) != uint8(crcRead) {
			return flacint.ErrCRCMismatch
		}
	}

	// Frame-local parameters must match STREAMINFO: mid-stream changes of
	// channel count, bit depth, or sample rate are unsupported.
	var frameChannels uint32

	switch {
	case d.frameChannelAssign <= 7:
		frameChannels = d.frameChannelAssign + 1
	case d.frameChannelAssign <= 10:
		frameChannels = 2
	default:
		return flacint.ErrReservedChannels
	}

	if frameChannels != d.channels {
		return flacint.ErrBadHeader
	}

	if depthCode != 0 && d.frameSampleDepth != d.sampleDepth {
		return flacint.ErrBadHeader
	}

	if frameSampleRate != d.sampleRate {
		return flacint.ErrBadHeader
	}

	return nil
}

// decodeSubframes decodes one subframe per channel into the planar working
// buffer and undoes inter-channel decorrelation. In the side-containing
// assignments the side channel is coded one bit wider than the frame depth.
func (d *Decoder) decodeSubframes(blockSize, sampleDepth, channelAssign uint32) error {
	size := int(blockSize)

	if channelAssign <= 7 {
		for ch := range int(channelAssign) + 1 {
			if err := d.decodeSubframe(blockSize, sampleDepth, ch*size); err != nil {
				return err
			}
		}

		return nil
	}

	if channelAssign > 10 {
		return flacint.ErrReservedChannels
	}

	// Stereo decorrelation: the side plane is index 1 for left/side and
	// mid/side, index 0 for side/right.
	depth0, depth1 := sampleDepth, sampleDepth+1
	if channelAssign == 9 {
		depth0, depth1 = sampleDepth+1, sampleDepth
	}

	if err := d.decodeSubframe(blockSize, depth0, 0); err != nil {
		return err
	}

	if err := d.decodeSubframe(blockSize, depth1, size); err != nil {
		return err
	}

	left := d.blockSamples[:size]
	right := d.blockSamples[size : 2*size]

	switch channelAssign {
	case 8: // left/side: right = left - side
		for i := range size {
			right[i] = left[i] - right[i]
		}
	case 9: // side/right: left = right + side
		for i := range size {
			left[i] += right[i]
		}
	case 10: // mid/side
		for i := range size {
			side := right[i]
			r := left[i] - side>>1
			right[i] = r
			left[i] = r + side
		}
	}

	return nil
}

// decodeSubframe decodes a single channel's subframe into the working
// buffer at offset.
func (d *Decoder) decodeSubframe(blockSize, sampleDepth uint32, offset int) error {
	d.br.ReadUint(1) // padding bit

	subframeType := d.br.ReadUint(6)

	// Wasted-bits prefix: a zero bit means none; a one bit starts a unary
	// count, shift = 1 + number of zero bits before the terminator.
	shift := d.br.ReadUint(1)
	if shift == 1 {
		for d.br.ReadUint(1) == 0 {
			shift++

			if d.br.OutOfData() {
				return ErrIncompleteFrame
			}
		}
	}

	if shift >= sampleDepth {
		return flacint.ErrBadHeader
	}

	sampleDepth -= shift

	sub := d.blockSamples[offset : offset+int(blockSize)]

	switch {
	case subframeType == 0:
		value := d.br.ReadSint(sampleDepth) << shift
		for i := range sub {
			sub[i] = value
		}
	case subframeType == 1:
		for i := range sub {
			sub[i] = d.br.ReadSint(sampleDepth) << shift
		}
	case subframeType >= 8 && subframeType <= 12:
		if err := d.decodeFixedSubframe(sub, subframeType-8, sampleDepth); err != nil {
			return err
		}

		applyWastedShift(sub, shift)
	case subframeType >= 32:
		if err := d.decodeLPCSubframe(sub, subframeType-31, sampleDepth); err != nil {
			return err
		}

		applyWastedShift(sub, shift)
	default:
		return flacint.ErrReservedSubframeType
	}

	return nil
}

// applyWastedShift restores stripped low-order zero bits.
func applyWastedShift(sub []int32, shift uint32) {
	if shift == 0 {
		return
	}

	for i := range sub {
		sub[i] <<= shift
	}
}

// decodeFixedSubframe decodes a fixed-predictor subframe of the given
// order. Fixed prediction always uses quantization shift 0.
func (d *Decoder) decodeFixedSubframe(sub []int32, order, sampleDepth uint32) error {
	if order > 4 {
		return flacint.ErrBadFixedOrder
	}

	for i := range int(order) {
		sub[i] = d.br.ReadSint(sampleDepth)
	}

	if err := d.decodeResiduals(sub, int(order)); err != nil {
		return err
	}

	coefs := flacint.FixedCoefficients[order]

	if flacint.CanUse32BitLPC(sampleDepth, coefs, 0) {
		flacint.Restore32(sub, coefs, 0)
	} else {
		flacint.Restore64(sub, coefs, 0)
	}

	return nil
}

// decodeLPCSubframe decodes a linear-predictive subframe of the given
// order (1-32).
func (d *Decoder) decodeLPCSubframe(sub []int32, order, sampleDepth uint32) error {
	for i := range int(order) {
		sub[i] = d.br.ReadSint(sampleDepth)
	}

	precision := d.br.ReadUint(4) + 1

	shift := d.br.ReadSint(5)
	if shift < 0 {
		// Negative quantization is not produced by any encoder; treat it
		// as zero rather than shifting by a negative count.
		shift = 0
	}

	// Coefficients are coded newest first; store them oldest first.
	var coefs [flacint.MaxLPCOrder]int32
	for i := range int(order) {
		coefs[int(order)-1-i] = d.br.ReadSint(precision)
	}

	if err := d.decodeResiduals(sub, int(order)); err != nil {
		return err
	}

	cs := coefs[:order]

	if flacint.CanUse32BitLPC(sampleDepth, cs, shift) {
		flacint.Restore32(sub, cs, shift)
	} else {
		flacint.Restore64(sub, cs, shift)
	}

	return nil
}

// decodeResiduals reads the Rice-coded residual section into sub starting
// after the warm-up samples.
func (d *Decoder) decodeResiduals(sub []int32, warmUp int) error {
	method := d.br.ReadUint(2)
	if method >= 2 {
		return flacint.ErrReservedResidual
	}

	paramBits := uint32(4)
	escapeParam := uint32(0x0F)

	if method == 1 {
		paramBits = 5
		escapeParam = 0x1F
	}

	partitionOrder := d.br.ReadUint(4)
	numPartitions := 1 << partitionOrder

	blockSize := len(sub)
	if blockSize%numPartitions != 0 {
		return flacint.ErrPartitionSize
	}

	count := blockSize >> partitionOrder
	if count < warmUp {
		return flacint.ErrPartitionSize
	}

	idx := warmUp

	for partition := range numPartitions {
		n := count
		if partition == 0 {
			n = count - warmUp
		}

		param := d.br.ReadUint(paramBits)

		if param < escapeParam {
			for range n {
				sub[idx] = d.br.ReadRice(param)
				idx++
			}

			continue
		}

		rawBits := d.br.ReadUint(5)
		if rawBits == 0 {
			clear(sub[idx : idx+n])
			idx += n

			continue
		}

		for range n {
			sub[idx] = d.br.ReadSint(rawBits)
			idx++
		}
	}

	return nil
}
