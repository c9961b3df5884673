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
	"fmt"

	flacint "github.com/mycophonic/saprobe-flac/internal/flac"
)

// magicNumber is the 32-bit stream signature "fLaC".
const magicNumber = 0x664C6143

// streamInfoLength is the fixed body size of a STREAMINFO block in bytes.
const streamInfoLength = 34

// headerState names the position of the header state machine between calls.
type headerState uint8

const (
	// headerMagic: the stream signature has not been read.
	headerMagic headerState = iota
	// headerBlockHeader: at the 4-byte header of the next metadata block.
	headerBlockHeader
	// headerBlockBody: inside a metadata block body, blockRead of
	// blockLength bytes consumed so far.
	headerBlockBody
	// headerDone: all metadata consumed; frames follow.
	headerDone
)

// ReadHeader consumes the stream signature and the metadata block sequence
// from buf. It may be called repeatedly: on ErrHeaderIncomplete the caller
// drains BytesConsumed bytes and calls again with more data, and parsing
// resumes exactly where it stopped, at any byte boundary.
//
// On nil every stream property is populated and validated. Calling
// ReadHeader again after completion starts a fresh stream: retained
// metadata is dropped and a new signature is expected.
func (d *Decoder) ReadHeader(buf []byte) error {
	d.br.Reset(buf)
	d.consumed = 0

	if d.headerState == headerDone {
		d.resetHeaderState()
	}

	for d.headerState != headerDone {
		switch d.headerState {
		case headerMagic:
			d.metadata = nil
			d.blockData = nil

			if d.br.BytesAvailable() < 4 {
				return d.suspendHeader()
			}

			if d.br.ReadUint(32) != magicNumber {
				return fmt.Errorf("%w: %w", ErrHeader, flacint.ErrBadMagicNumber)
			}

			d.firstBlock = true
			d.headerState = headerBlockHeader

		case headerBlockHeader:
			if d.br.BytesAvailable() < 4 {
				return d.suspendHeader()
			}

			d.lastBlock = d.br.ReadUint(1) != 0
			d.blockType = d.br.ReadUint(7)
			d.blockLength = d.br.ReadUint(24)
			d.blockRead = 0
			d.blockData = d.blockData[:0]

			if d.firstBlock {
				if d.blockType != uint32(MetadataStreamInfo) {
					return fmt.Errorf("%w: %w", ErrHeader, flacint.ErrStreamInfoNotFirst)
				}

				if d.blockLength != streamInfoLength {
					return fmt.Errorf("%w: %w", ErrHeader, flacint.ErrBadHeader)
				}
			}

			d.headerState = headerBlockBody

		case headerBlockBody:
			if err := d.readBlockBody(); err != nil {
				return err
			}

		case headerDone:
		}
	}

	if err := d.validateStreamInfo(); err != nil {
		return err
	}

	d.br.Rewind()
	d.consumed = d.br.Consumed()

	return nil
}

// suspendHeader saves the resume point and hands control back to the caller
// for more input.
func (d *Decoder) suspendHeader() error {
	d.br.Rewind()
	d.consumed = d.br.Consumed()

	return ErrHeaderIncomplete
}

// readBlockBody consumes as much of the current block body as the input
// allows. STREAMINFO is always accumulated and parsed; other types are
// either accumulated up to their retention limit or discarded byte by byte.
func (d *Decoder) readBlockBody() error {
	blockType := MetadataType(d.blockType)

	skip := false
	if blockType != MetadataStreamInfo {
		limit := d.metadataLimits[limitSlot(blockType)]
		skip = limit == 0 || d.blockLength > limit
	}

	avail := uint32(d.br.BytesAvailable())

	toRead := d.blockLength - d.blockRead
	if toRead > avail {
		toRead = avail
	}

	if skip {
		for range toRead {
			d.br.ReadAlignedByte()
		}
	} else {
		if cap(d.blockData) < int(d.blockLength) {
			grown := make([]byte, len(d.blockData), d.blockLength)
			copy(grown, d.blockData)
			d.blockData = grown
		}

		for range toRead {
			d.blockData = append(d.blockData, byte(d.br.ReadAlignedByte()))
		}
	}

	d.blockRead += toRead

	if d.blockRead < d.blockLength {
		return d.suspendHeader()
	}

	// Block complete.
	if blockType == MetadataStreamInfo {
		d.parseStreamInfo(d.blockData)
	} else if !skip {
		data := make([]byte, len(d.blockData))
		copy(data, d.blockData)
		d.metadata = append(d.metadata, MetadataBlock{
			Type:   blockType,
			Length: d.blockLength,
			Data:   data,
		})
	}

	d.firstBlock = false
	d.blockLength = 0
	d.blockRead = 0
	d.blockData = d.blockData[:0]

	if d.lastBlock {
		d.headerState = headerDone
	} else {
		d.headerState = headerBlockHeader
	}

	return nil
}

// parseStreamInfo promotes the 34-byte STREAMINFO body to stream
// properties. Layout, big-endian bit order: min block 16, max block 16,
// min frame 24, max frame 24, sample rate 20, channels-1 3, depth-1 5,
// total samples 36, MD5 128.
func (d *Decoder) parseStreamInfo(body []byte) {
	var br flacint.BitReader
	br.Reset(body)

	d.minBlockSize = br.ReadUint(16)
	d.maxBlockSize = br.ReadUint(16)
	br.ReadUint(24) // min frame size
	br.ReadUint(24) // max frame size
	d.sampleRate = br.ReadUint(20)
	d.channels = br.ReadUint(3) + 1
	d.sampleDepth = br.ReadUint(5) + 1
	d.totalSamples = uint64(br.ReadUint(4))<<32 | uint64(br.ReadUint(32))

	for i := range d.md5Signature {
		d.md5Signature[i] = byte(br.ReadUint(8))
	}
}

// validateStreamInfo rejects parameter combinations the decoder cannot
// honor.
func (d *Decoder) validateStreamInfo() error {
	if d.sampleRate == 0 || d.channels == 0 || d.sampleDepth == 0 || d.maxBlockSize == 0 {
		return fmt.Errorf("%w: %w", ErrHeader, flacint.ErrBadHeader)
	}

	if d.minBlockSize < 16 || d.minBlockSize > d.maxBlockSize || d.maxBlockSize > 65535 {
		return fmt.Errorf("%w: %w", ErrHeader, flacint.ErrBadHeader)
	}

	return nil
}

// resetHeaderState prepares a fresh header sequence, releasing metadata and
// the working buffer of the previous stream.
func (d *Decoder) resetHeaderState() {
	d.headerState = headerMagic
	d.lastBlock = false
	d.blockType = 0
	d.blockLength = 0
	d.blockRead = 0
	d.blockData = nil
	d.firstBlock = false
	d.metadata = nil
	d.blockSamples = nil
}
