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

package flac_test

import (
	"bytes"
	"encoding/binary"

	"github.com/icza/bitio"
	"github.com/mewkiz/pkg/hashutil/crc16"
	"github.com/mewkiz/pkg/hashutil/crc8"
)

// Synthetic FLAC bitstream builders. Streams are authored bit by bit so
// tests control every field; CRCs are computed the same way an encoder
// would.

// streamInfo describes the STREAMINFO block of a synthetic stream.
type streamInfo struct {
	minBlock     uint32
	maxBlock     uint32
	sampleRate   uint32
	channels     uint32
	depth        uint32
	totalSamples uint64
	md5          [16]byte
}

// defaultStreamInfo is a small stereo 16-bit stream usable by most tests.
func defaultStreamInfo() streamInfo {
	return streamInfo{
		minBlock:   16,
		maxBlock:   4096,
		sampleRate: 44100,
		channels:   2,
		depth:      16,
	}
}

// appendStreamInfo appends a STREAMINFO metadata block (header + 34-byte
// body) to buf.
func appendStreamInfo(buf *bytes.Buffer, info streamInfo, last bool) {
	var hdr byte
	if last {
		hdr = 0x80
	}

	buf.WriteByte(hdr) // type 0, last flag in the top bit
	buf.Write([]byte{0x00, 0x00, 34})

	w := bitio.NewWriter(buf)

	_ = w.WriteBits(uint64(info.minBlock), 16)
	_ = w.WriteBits(uint64(info.maxBlock), 16)
	_ = w.WriteBits(0, 24) // min frame size unknown
	_ = w.WriteBits(0, 24) // max frame size unknown
	_ = w.WriteBits(uint64(info.sampleRate), 20)
	_ = w.WriteBits(uint64(info.channels-1), 3)
	_ = w.WriteBits(uint64(info.depth-1), 5)
	_ = w.WriteBits(info.totalSamples>>32&0xF, 4)
	_ = w.WriteBits(info.totalSamples&0xFFFFFFFF, 32)

	for _, b := range info.md5 {
		_ = w.WriteBits(uint64(b), 8)
	}

	_ = w.Close()
}

// appendMetadataBlock appends an arbitrary metadata block to buf.
func appendMetadataBlock(buf *bytes.Buffer, blockType byte, data []byte, last bool) {
	hdr := blockType
	if last {
		hdr |= 0x80
	}

	buf.WriteByte(hdr)

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	buf.Write(length[1:])

	buf.Write(data)
}

// buildHeader returns magic + STREAMINFO as a complete stream header.
func buildHeader(info streamInfo) []byte {
	var buf bytes.Buffer

	buf.WriteString("fLaC")
	appendStreamInfo(&buf, info, true)

	return buf.Bytes()
}

// buildFrame assembles one frame: sync, header with CRC-8, the subframe
// bits produced by writeSubframes (zero-padded to a byte boundary), and the
// CRC-16 trailer. Block size is coded as an uncommon size so any value
// works; sample rate and depth inherit STREAMINFO.
func buildFrame(chanAssign uint32, blockSize int, writeSubframes func(w *bitio.Writer)) []byte {
	hdr := []byte{0xFF, 0xF8}

	var bsCode byte

	if blockSize <= 256 {
		bsCode = 6
	} else {
		bsCode = 7
	}

	hdr = append(hdr, bsCode<<4) // sample rate code 0: from STREAMINFO
	hdr = append(hdr, byte(chanAssign)<<4)
	hdr = append(hdr, 0x00) // coded frame number 0

	if bsCode == 6 {
		hdr = append(hdr, byte(blockSize-1))
	} else {
		hdr = append(hdr, byte((blockSize-1)>>8), byte(blockSize-1))
	}

	hdr = append(hdr, crc8.ChecksumATM(hdr))

	var buf bytes.Buffer

	buf.Write(hdr)

	w := bitio.NewWriter(&buf)
	writeSubframes(w)
	_ = w.Close()

	frame := buf.Bytes()
	crc := crc16.ChecksumIBM(frame)

	return append(frame, byte(crc>>8), byte(crc))
}

// writeSubframeHeader writes the padding bit, the 6-bit subframe type, and
// the wasted-bits prefix.
func writeSubframeHeader(w *bitio.Writer, subframeType, wasted uint32) {
	_ = w.WriteBits(0, 1)
	_ = w.WriteBits(uint64(subframeType), 6)

	if wasted == 0 {
		_ = w.WriteBits(0, 1)

		return
	}

	_ = w.WriteBits(1, 1)

	for range wasted - 1 {
		_ = w.WriteBits(0, 1)
	}

	_ = w.WriteBits(1, 1)
}

// writeSint writes v as a two's-complement value of the given width.
func writeSint(w *bitio.Writer, v int32, bits uint32) {
	_ = w.WriteBits(uint64(uint32(v))&(1<<bits-1), byte(bits))
}

// writeRice writes one Rice-coded value: zig-zag, unary quotient, binary
// remainder.
func writeRice(w *bitio.Writer, param uint32, v int32) {
	zigzag := uint32(v<<1) ^ uint32(v>>31)

	for range zigzag >> param {
		_ = w.WriteBits(0, 1)
	}

	_ = w.WriteBits(1, 1)

	if param > 0 {
		_ = w.WriteBits(uint64(zigzag)&(1<<param-1), byte(param))
	}
}

// writeResidualHeader writes the residual coding method and partition
// order.
func writeResidualHeader(w *bitio.Writer, method, partitionOrder uint32) {
	_ = w.WriteBits(uint64(method), 2)
	_ = w.WriteBits(uint64(partitionOrder), 4)
}

// writeConstantSubframe writes a constant subframe of the given value.
func writeConstantSubframe(w *bitio.Writer, value int32, depth, wasted uint32) {
	writeSubframeHeader(w, 0, wasted)
	writeSint(w, value, depth-wasted)
}

// writeVerbatimSubframe writes every sample literally.
func writeVerbatimSubframe(w *bitio.Writer, samples []int32, depth uint32) {
	writeSubframeHeader(w, 1, 0)

	for _, s := range samples {
		writeSint(w, s, depth)
	}
}

// writeFixedSubframe writes a fixed-predictor subframe: warm-up samples and
// one Rice partition of residuals.
func writeFixedSubframe(w *bitio.Writer, order uint32, depth uint32, warmUp, residuals []int32, param uint32) {
	writeSubframeHeader(w, 8+order, 0)

	for _, s := range warmUp {
		writeSint(w, s, depth)
	}

	writeResidualHeader(w, 0, 0)
	_ = w.WriteBits(uint64(param), 4)

	for _, r := range residuals {
		writeRice(w, param, r)
	}
}

// interleave flattens expected per-channel samples into the interleaved
// order the decoder outputs.
func interleave(chans ...[]int32) []int32 {
	out := make([]int32, 0, len(chans)*len(chans[0]))

	for i := range chans[0] {
		for _, ch := range chans {
			out = append(out, ch[i])
		}
	}

	return out
}

// pcm16 packs interleaved samples as 16-bit little-endian bytes.
func pcm16(samples []int32) []byte {
	out := make([]byte, len(samples)*2)

	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	return out
}
