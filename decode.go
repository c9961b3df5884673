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

package flac

import (
	"errors"
	"fmt"
	"io"

	flacint "github.com/mycophonic/saprobe-flac/internal/flac"
)

// readChunkSize is how many bytes StreamDecoder pulls from its source per
// refill.
const readChunkSize = 4096

// PCMFormat describes the PCM produced by a decoder.
type PCMFormat struct {
	SampleRate int
	BitDepth   int
	Channels   int
}

// StreamDecoder streams decoded PCM from a FLAC source. The stream header
// is parsed upfront; frames are decoded on demand via Read, buffering only
// as much input as one frame needs.
type StreamDecoder struct {
	reader io.Reader
	dec    *Decoder

	in        []byte // unconsumed input window
	sourceEOF bool

	// Per-frame PCM buffer, drained by Read.
	frame    []byte
	frameOff int
	done     bool
}

// NewStreamDecoder reads the stream header from r and returns a streaming
// decoder. PCM data is decoded frame by frame on demand via Read.
func NewStreamDecoder(r io.Reader) (*StreamDecoder, error) {
	s := &StreamDecoder{
		reader: r,
		dec:    NewDecoder(),
	}

	for {
		err := s.dec.ReadHeader(s.in)

		if err == nil {
			s.drain(s.dec.BytesConsumed())

			break
		}

		if !errors.Is(err, ErrHeaderIncomplete) {
			return nil, err
		}

		s.drain(s.dec.BytesConsumed())

		before := len(s.in)

		if err := s.refill(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrHeader, err)
		}

		if s.sourceEOF && len(s.in) == before {
			return nil, fmt.Errorf("%w: %w", ErrHeader, io.ErrUnexpectedEOF)
		}
	}

	s.frame = make([]byte, 0, s.dec.OutputBufferSizeBytes())

	return s, nil
}

// Format returns the PCM output format.
func (s *StreamDecoder) Format() PCMFormat {
	return PCMFormat{
		SampleRate: int(s.dec.SampleRate()),
		BitDepth:   int(s.dec.SampleDepth()),
		Channels:   int(s.dec.Channels()),
	}
}

// Metadata returns the metadata blocks retained during header parsing.
func (s *StreamDecoder) Metadata() []MetadataBlock {
	return s.dec.MetadataBlocks()
}

// Read reads decoded PCM bytes from the FLAC stream.
func (s *StreamDecoder) Read(p []byte) (int, error) { //nolint:varnamelen // p is idiomatic for io.Reader.Read
	total := 0

	for len(p) > 0 {
		// Drain buffered frame data.
		if s.frameOff < len(s.frame) {
			n := copy(p, s.frame[s.frameOff:])
			s.frameOff += n
			total += n
			p = p[n:]

			continue
		}

		if s.done {
			if total > 0 {
				return total, nil
			}

			return 0, io.EOF
		}

		if err := s.decodeNextFrame(); err != nil {
			if errors.Is(err, io.EOF) {
				s.done = true

				continue
			}

			return total, err
		}
	}

	return total, nil
}

// decodeNextFrame decodes one frame into the frame buffer, refilling the
// input window as needed.
func (s *StreamDecoder) decodeNextFrame() error {
	for {
		if len(s.in) == 0 {
			if s.sourceEOF {
				return io.EOF
			}

			if err := s.refill(); err != nil {
				return fmt.Errorf("%w: %w", ErrDecode, err)
			}

			continue
		}

		buf := s.frame[:cap(s.frame)]

		samples, err := s.dec.DecodeFrame(s.in, buf)

		switch {
		case err == nil:
			s.drain(s.dec.BytesConsumed())
			s.frame = buf[:samples*s.dec.OutputBytesPerSample()]
			s.frameOff = 0

			return nil

		case errors.Is(err, ErrIncompleteFrame):
			if s.sourceEOF {
				return fmt.Errorf("%w: %w", ErrDecode, io.ErrUnexpectedEOF)
			}

			if err := s.refill(); err != nil {
				return fmt.Errorf("%w: %w", ErrDecode, err)
			}

		case errors.Is(err, flacint.ErrSyncNotFound) && !s.sourceEOF:
			// The window may end inside a sync code: keep it and rescan
			// with more input.
			if err := s.refill(); err != nil {
				return fmt.Errorf("%w: %w", ErrDecode, err)
			}

		default:
			return err
		}
	}
}

// refill appends up to one chunk of source bytes to the input window.
func (s *StreamDecoder) refill() error {
	if s.sourceEOF {
		return nil
	}

	chunk := make([]byte, readChunkSize)

	n, err := s.reader.Read(chunk)
	s.in = append(s.in, chunk[:n]...)

	if err != nil {
		if errors.Is(err, io.EOF) {
			s.sourceEOF = true

			return nil
		}

		return err
	}

	return nil
}

// drain drops n consumed bytes from the front of the input window.
func (s *StreamDecoder) drain(n int) {
	if n == 0 {
		return
	}

	rest := copy(s.in, s.in[n:])
	s.in = s.in[:rest]
}

// Decode reads a whole FLAC stream and returns its interleaved
// little-endian PCM bytes: signed, except 8-bit streams, which are unsigned.
func Decode(r io.Reader) ([]byte, PCMFormat, error) {
	dec, err := NewStreamDecoder(r)
	if err != nil {
		return nil, PCMFormat{}, err
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, PCMFormat{}, fmt.Errorf("decoding flac: %w", err)
	}

	return pcm, dec.Format(), nil
}
