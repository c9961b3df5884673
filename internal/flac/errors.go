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

// FLAC decoder error sentinels.
//
//revive:disable:exported
var (
	ErrBadMagicNumber       = errors.New("flac: bad magic number")
	ErrBadHeader            = errors.New("flac: malformed stream header")
	ErrStreamInfoNotFirst   = errors.New("flac: first metadata block is not STREAMINFO")
	ErrHeaderNotRead        = errors.New("flac: stream header has not been read")
	ErrSyncNotFound         = errors.New("flac: frame sync code not found")
	ErrBadBlockSizeCode     = errors.New("flac: reserved block size code")
	ErrBlockSizeOutOfRange  = errors.New("flac: block size exceeds STREAMINFO maximum")
	ErrBadSampleDepth       = errors.New("flac: reserved sample depth code")
	ErrReservedChannels     = errors.New("flac: reserved channel assignment")
	ErrReservedSubframeType = errors.New("flac: reserved subframe type")
	ErrBadFixedOrder        = errors.New("flac: invalid fixed prediction order")
	ErrReservedResidual     = errors.New("flac: reserved residual coding method")
	ErrPartitionSize        = errors.New("flac: block size not divisible into rice partitions")
	ErrCRCMismatch          = errors.New("flac: crc mismatch")
	ErrAllocFailed          = errors.New("flac: allocator returned no buffer")
)
