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
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/icza/bitio"

	"github.com/mycophonic/saprobe-flac"
)

// buildMonoStream assembles a complete stream: header plus one constant
// frame per value. Returns the stream and its expected 16-bit PCM.
func buildMonoStream(values []int32, blockSize int) (stream, wantPCM []byte) {
	info := defaultStreamInfo()
	info.channels = 1

	var buf bytes.Buffer

	buf.Write(buildHeader(info))

	var want []byte

	for _, v := range values {
		frame := buildFrame(0, blockSize, func(w *bitio.Writer) {
			writeConstantSubframe(w, v, info.depth, 0)
		})
		buf.Write(frame)

		block := make([]int32, blockSize)
		for i := range block {
			block[i] = v
		}

		want = append(want, pcm16(block)...)
	}

	return buf.Bytes(), want
}

func TestStreamDecoder(t *testing.T) {
	t.Parallel()

	stream, want := buildMonoStream([]int32{100, -200, 300}, 64)

	dec, err := flac.NewStreamDecoder(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}

	format := dec.Format()
	if format.SampleRate != 44100 || format.Channels != 1 || format.BitDepth != 16 {
		t.Fatalf("Format = %+v", format)
	}

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("decoded %d bytes, want %d; content mismatch", len(got), len(want))
	}
}

// TestStreamDecoderSplitInputEquivalence feeds the same stream whole and
// one byte at a time; both drives must produce identical PCM.
func TestStreamDecoderSplitInputEquivalence(t *testing.T) {
	t.Parallel()

	stream, want := buildMonoStream([]int32{1, -1, 12345, -12345, 777}, 32)

	whole, _, err := flac.Decode(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("Decode(whole): %v", err)
	}

	split, _, err := flac.Decode(iotest.OneByteReader(bytes.NewReader(stream)))
	if err != nil {
		t.Fatalf("Decode(one byte at a time): %v", err)
	}

	if !bytes.Equal(whole, split) {
		t.Fatal("split-input decode differs from whole-input decode")
	}

	if !bytes.Equal(whole, want) {
		t.Fatal("decoded PCM differs from expected signal")
	}
}

func TestStreamDecoderSmallReads(t *testing.T) {
	t.Parallel()

	stream, want := buildMonoStream([]int32{42, 43}, 64)

	dec, err := flac.NewStreamDecoder(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}

	// Read with a buffer that does not divide the frame size.
	var got bytes.Buffer

	buf := make([]byte, 37)

	for {
		n, readErr := dec.Read(buf)
		got.Write(buf[:n])

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}

			t.Fatalf("Read: %v", readErr)
		}
	}

	if !bytes.Equal(got.Bytes(), want) {
		t.Fatalf("small reads produced %d bytes, want %d", got.Len(), len(want))
	}
}

func TestStreamDecoderTruncatedSource(t *testing.T) {
	t.Parallel()

	stream, _ := buildMonoStream([]int32{5}, 64)

	_, err := flac.NewStreamDecoder(bytes.NewReader(stream[:20]))
	if err == nil {
		t.Fatal("expected error for truncated header")
	}

	dec, err := flac.NewStreamDecoder(bytes.NewReader(stream[:len(stream)-3]))
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}

	if _, err := io.ReadAll(dec); !errors.Is(err, flac.ErrDecode) {
		t.Fatalf("truncated frame read = %v, want ErrDecode", err)
	}
}

func TestStreamDecoderMetadata(t *testing.T) {
	t.Parallel()

	info := defaultStreamInfo()
	info.channels = 1

	var buf bytes.Buffer

	buf.WriteString("fLaC")
	appendStreamInfo(&buf, info, false)
	appendMetadataBlock(&buf, byte(flac.MetadataVorbisComment), []byte("title=test"), true)
	buf.Write(buildFrame(0, 16, func(w *bitio.Writer) {
		writeConstantSubframe(w, 0, info.depth, 0)
	}))

	dec, err := flac.NewStreamDecoder(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewStreamDecoder: %v", err)
	}

	blocks := dec.Metadata()
	if len(blocks) != 1 || blocks[0].Type != flac.MetadataVorbisComment {
		t.Fatalf("Metadata = %+v, want one vorbis comment", blocks)
	}
}
