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

// flac2wav converts FLAC files to WAV files.
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/mycophonic/saprobe-flac"
)

func main() {
	var force bool

	flag.BoolVar(&force, "f", false, "force overwrite")
	flag.Parse()

	for _, path := range flag.Args() {
		if err := flac2wav(path, force); err != nil {
			log.Fatalf("%+v", err)
		}
	}
}

func flac2wav(path string, force bool) error {
	r, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer r.Close()

	dec, err := flac.NewStreamDecoder(r)
	if err != nil {
		return errors.WithStack(err)
	}

	format := dec.Format()

	wavPath := strings.TrimSuffix(path, ".flac") + ".wav"
	if !force {
		if _, err := os.Stat(wavPath); err == nil {
			return errors.Errorf("the file %q exists already", wavPath)
		}
	}

	w, err := os.Create(wavPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer w.Close()

	enc := wav.NewEncoder(w, format.SampleRate, format.BitDepth, format.Channels, 1)

	bytesPerSample := (format.BitDepth + 7) / 8
	frameBytes := make([]byte, readFrameBytes(dec))

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: format.Channels,
			SampleRate:  format.SampleRate,
		},
		SourceBitDepth: format.BitDepth,
	}

	for {
		n, err := dec.Read(frameBytes)
		if n > 0 {
			buf.Data = pcmToInts(frameBytes[:n], bytesPerSample)
			if err := enc.Write(buf); err != nil {
				return errors.WithStack(err)
			}
		}

		if err != nil {
			if err == io.EOF {
				break
			}

			return errors.WithStack(err)
		}
	}

	return errors.WithStack(enc.Close())
}

// readFrameBytes sizes the read buffer to whole samples so pcmToInts never
// sees a partial one.
func readFrameBytes(dec *flac.StreamDecoder) int {
	format := dec.Format()
	bytesPerSample := (format.BitDepth + 7) / 8

	return 4096 * format.Channels * bytesPerSample
}

// pcmToInts unpacks little-endian signed PCM into the int samples the WAV
// encoder consumes. 8-bit WAV audio is unsigned, matching the decoder's
// 8-bit output.
func pcmToInts(pcm []byte, bytesPerSample int) []int {
	samples := make([]int, len(pcm)/bytesPerSample)

	for i := range samples {
		chunk := pcm[i*bytesPerSample:]

		switch bytesPerSample {
		case 1:
			samples[i] = int(chunk[0])
		case 2:
			samples[i] = int(int16(uint16(chunk[0]) | uint16(chunk[1])<<8))
		case 3:
			val := uint32(chunk[0]) | uint32(chunk[1])<<8 | uint32(chunk[2])<<16
			samples[i] = int(int32(val<<8) >> 8)
		default:
			samples[i] = int(int32(uint32(chunk[0]) | uint32(chunk[1])<<8 | uint32(chunk[2])<<16 | uint32(chunk[3])<<24))
		}
	}

	return samples
}
