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

// Package flac decodes native FLAC bitstreams into interleaved LE PCM
// (signed, except 8-bit output, which is unsigned). The decoder is push-driven and suitable for memory-constrained
// streaming: input arrives in caller-owned chunks of arbitrary size, header
// parsing resumes across chunk boundaries, and one working buffer is reused
// for every frame.
package flac

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/pkg/hashutil/crc16"

	flacint "github.com/mycophonic/saprobe-flac/internal/flac"
)

// Decoder decodes a native FLAC bitstream chunk by chunk.
//
// Drive ReadHeader until it returns nil, then DecodeFrame repeatedly until
// io.EOF. A Decoder is not safe for concurrent use.
type Decoder struct {
	br flacint.BitReader

	// Stream properties from STREAMINFO, immutable once the header is read.
	minBlockSize uint32
	maxBlockSize uint32
	sampleRate   uint32
	channels     uint32
	sampleDepth  uint32
	totalSamples uint64
	md5Signature [16]byte

	// Current frame state, valid during one DecodeFrame call.
	frameBlockSize     uint32
	frameChannelAssign uint32
	frameSampleDepth   uint32
	frameStart         int

	// Working buffer, channel-major planes of maxBlockSize samples.
	// Allocated lazily on the first DecodeFrame and reused.
	blockSamples []int32
	alloc        func(n int) []int32

	crcCheck    bool
	output32Bit bool

	// Header state machine.
	headerState headerState
	lastBlock   bool
	blockType   uint32
	blockLength uint32
	blockRead   uint32
	blockData   []byte
	firstBlock  bool

	metadata       []MetadataBlock
	metadataLimits [metadataLimitSlots]uint32

	consumed int
}

// NewDecoder returns a decoder in its idle state with CRC checking enabled,
// native output packing, and the default metadata retention limits.
func NewDecoder() *Decoder {
	return &Decoder{
		crcCheck:       true,
		metadataLimits: defaultMetadataLimits(),
	}
}

// SetCRCCheckEnabled enables or disables validation of the frame-header
// CRC-8 and the frame CRC-16. Enabled by default.
func (d *Decoder) SetCRCCheckEnabled(enabled bool) { d.crcCheck = enabled }

// CRCCheckEnabled reports whether CRC validation is enabled.
func (d *Decoder) CRCCheckEnabled() bool { return d.crcCheck }

// SetOutput32BitSamples switches output packing to left-justified 32-bit
// containers regardless of the stream's bit depth. Off by default.
func (d *Decoder) SetOutput32BitSamples(enabled bool) { d.output32Bit = enabled }

// Output32BitSamples reports whether 32-bit output mode is enabled.
func (d *Decoder) Output32BitSamples() bool { return d.output32Bit }

// SetAllocator installs a custom allocator for the working buffer. The
// allocator is invoked for MaxBlockSize × Channels samples when DecodeFrame
// finds no working buffer; the buffer is then reused for every frame of the
// stream, and a ReadHeader that starts a new stream releases it. Returning a
// nil or short slice makes that DecodeFrame fail. A nil allocator restores
// plain make.
func (d *Decoder) SetAllocator(alloc func(n int) []int32) { d.alloc = alloc }

// SampleRate returns the stream sample rate in Hz.
func (d *Decoder) SampleRate() uint32 { return d.sampleRate }

// Channels returns the number of audio channels (1-8).
func (d *Decoder) Channels() uint32 { return d.channels }

// SampleDepth returns the source bits per sample.
func (d *Decoder) SampleDepth() uint32 { return d.sampleDepth }

// MinBlockSize returns the minimum samples per channel per frame.
func (d *Decoder) MinBlockSize() uint32 { return d.minBlockSize }

// MaxBlockSize returns the maximum samples per channel per frame.
func (d *Decoder) MaxBlockSize() uint32 { return d.maxBlockSize }

// TotalSamples returns the total samples per channel, 0 when unknown.
func (d *Decoder) TotalSamples() uint64 { return d.totalSamples }

// MD5Signature returns the 16-byte MD5 of the unencoded audio data; all
// zero means the stream carries no signature.
func (d *Decoder) MD5Signature() [16]byte { return d.md5Signature }

// OutputBytesPerSample returns the bytes each output sample occupies: 4 in
// 32-bit mode, otherwise the sample depth rounded up to whole bytes.
func (d *Decoder) OutputBytesPerSample() int {
	if d.output32Bit {
		return 4
	}

	return int(d.sampleDepth+7) / 8
}

// OutputBufferSize returns the output capacity one frame may need, in
// samples across all channels.
func (d *Decoder) OutputBufferSize() int {
	return int(d.maxBlockSize * d.channels)
}

// OutputBufferSizeBytes returns the output capacity one frame may need, in
// bytes.
func (d *Decoder) OutputBufferSizeBytes() int {
	return d.OutputBufferSize() * d.OutputBytesPerSample()
}

// BytesConsumed returns how many bytes the last ReadHeader or DecodeFrame
// call drained from the front of its input buffer. It is 0 after
// ErrIncompleteFrame so no input is lost on retry.
func (d *Decoder) BytesConsumed() int { return d.consumed }

// DecodeFrame decodes the next frame from buf into out as interleaved
// little-endian PCM and returns the number of samples written across all
// channels (block size × channels).
//
// buf must hold one complete frame, from its sync code through the CRC-16
// trailer; ErrIncompleteFrame asks the caller to retry with more bytes. An
// empty buf returns io.EOF: the stream ended cleanly. out must hold at
// least OutputBufferSizeBytes bytes.
func (d *Decoder) DecodeFrame(buf, out []byte) (int, error) {
	if d.headerState != headerDone {
		return 0, fmt.Errorf("%w: %w", ErrDecode, flacint.ErrHeaderNotRead)
	}

	d.br.Reset(buf)
	d.consumed = 0

	if d.blockSamples == nil {
		if err := d.allocBlockSamples(); err != nil {
			return 0, err
		}
	}

	if len(buf) == 0 {
		return 0, io.EOF
	}

	if err := d.decodeFrameHeader(); err != nil {
		return 0, d.failFrame(err)
	}

	// The working buffer is sized from STREAMINFO; an oversized frame would
	// overrun it.
	if d.frameBlockSize > d.maxBlockSize {
		return 0, d.failFrame(flacint.ErrBlockSizeOutOfRange)
	}

	if err := d.decodeSubframes(d.frameBlockSize, d.frameSampleDepth, d.frameChannelAssign); err != nil {
		return 0, d.failFrame(err)
	}

	if d.br.OutOfData() {
		return 0, d.failFrame(ErrIncompleteFrame)
	}

	d.br.AlignToByte()

	if d.br.BytesAvailable() < 2 {
		return 0, d.failFrame(ErrIncompleteFrame)
	}

	frameEnd := d.br.Consumed()
	crcRead := uint16(d.br.ReadUint(16))

	if d.crcCheck && frameEnd > d.frameStart {
		if crc16.ChecksumIBM(buf[d.frameStart:frameEnd]) != crcRead {
			return 0, d.failFrame(flacint.ErrCRCMismatch)
		}
	}

	d.writeSamples(out)

	d.br.Rewind()
	d.consumed = d.br.Consumed()

	return int(d.frameBlockSize * d.channels), nil
}

// allocBlockSamples performs the once-per-lifetime working buffer
// allocation.
func (d *Decoder) allocBlockSamples() error {
	needed := int(d.maxBlockSize * d.channels)

	if d.alloc == nil {
		d.blockSamples = make([]int32, needed)

		return nil
	}

	buf := d.alloc(needed)
	if len(buf) < needed {
		return fmt.Errorf("%w: %w", ErrDecode, flacint.ErrAllocFailed)
	}

	d.blockSamples = buf[:needed]

	return nil
}

// failFrame rewinds the bit reader to a clean byte boundary and maps err to
// the caller-visible form. Out-of-data conditions win over parse errors
// derived from zero-filled reads.
func (d *Decoder) failFrame(err error) error {
	d.br.AlignToByte()
	d.br.Rewind()

	// A failed sync scan stays SYNC_NOT_FOUND even when it drained the
	// buffer: the caller resyncs on later bytes rather than refilling.
	if errors.Is(err, flacint.ErrSyncNotFound) {
		d.consumed = d.br.Consumed()

		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if d.br.OutOfData() || errors.Is(err, ErrIncompleteFrame) {
		d.consumed = 0

		return ErrIncompleteFrame
	}

	d.consumed = d.br.Consumed()

	return fmt.Errorf("%w: %w", ErrDecode, err)
}

// writeSamples interleaves the planar working buffer into out, picking a
// fast path when the layout allows it.
func (d *Decoder) writeSamples(out []byte) {
	blockSize := int(d.frameBlockSize)

	if d.output32Bit {
		shift := 32 - d.frameSampleDepth

		switch d.channels {
		case 2:
			flacint.WriteStereo32(out, d.blockSamples, blockSize, shift)
		case 1:
			flacint.WriteMono32(out, d.blockSamples, blockSize, shift)
		default:
			flacint.WriteGeneral32(out, d.blockSamples, blockSize, int(d.channels), shift)
		}

		return
	}

	bytesPerSample := int(d.frameSampleDepth+7) / 8

	var shift uint32
	if d.frameSampleDepth%8 != 0 {
		shift = 8 - d.frameSampleDepth%8
	}

	switch {
	case d.frameSampleDepth == 16 && d.channels == 2:
		flacint.WriteStereo16(out, d.blockSamples, blockSize)
	case d.frameSampleDepth == 16 && d.channels == 1:
		flacint.WriteMono16(out, d.blockSamples, blockSize)
	case d.frameSampleDepth == 24 && d.channels == 2:
		flacint.WriteStereo24(out, d.blockSamples, blockSize)
	default:
		flacint.WriteGeneral(out, d.blockSamples, blockSize, int(d.channels), bytesPerSample, shift, d.frameSampleDepth)
	}
}
