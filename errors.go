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

import "errors"

// Public sentinel errors for consumer error matching.
var (
	// ErrHeader indicates an invalid or malformed stream header
	// (bad magic number, bad STREAMINFO, metadata ordering violation).
	ErrHeader = errors.New("invalid stream header")

	// ErrDecode indicates a failure during frame decoding
	// (lost sync, reserved bit patterns, CRC mismatch).
	ErrDecode = errors.New("decode failed")

	// ErrHeaderIncomplete reports that ReadHeader ran out of input mid-way
	// through the metadata sequence. Not fatal: drain BytesConsumed bytes
	// and call ReadHeader again with more data.
	ErrHeaderIncomplete = errors.New("header needs more data")

	// ErrIncompleteFrame reports that DecodeFrame saw less than one full
	// frame. Not fatal: BytesConsumed is 0, so the caller can grow its
	// buffer and retry without losing bytes.
	ErrIncompleteFrame = errors.New("frame needs more data")
)
