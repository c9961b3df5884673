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

// MetadataType identifies a FLAC metadata block type.
type MetadataType uint8

// Metadata block types from the FLAC bitstream.
const (
	MetadataStreamInfo    MetadataType = 0
	MetadataPadding       MetadataType = 1
	MetadataApplication   MetadataType = 2
	MetadataSeekTable     MetadataType = 3
	MetadataVorbisComment MetadataType = 4
	MetadataCueSheet      MetadataType = 5
	MetadataPicture       MetadataType = 6
)

// metadataLimitSlots is one retention-limit slot per known type (0-6) plus a
// shared slot for unknown types (7-126).
const metadataLimitSlots = 8

// Default retention limits in bytes. Conservative for memory-constrained
// targets: only Vorbis comments are kept, everything else is skipped.
const (
	defaultMaxPaddingSize       = 0
	defaultMaxApplicationSize   = 0
	defaultMaxSeekTableSize     = 0
	defaultMaxVorbisCommentSize = 2 * 1024
	defaultMaxCueSheetSize      = 0
	defaultMaxPictureSize       = 0
	defaultMaxUnknownSize       = 0
)

// MetadataBlock is a metadata block retained during header parsing.
type MetadataBlock struct {
	Type   MetadataType
	Length uint32
	Data   []byte
}

// limitSlot maps a block type to its retention-limit slot.
func limitSlot(blockType MetadataType) int {
	if blockType <= MetadataPicture {
		return int(blockType)
	}

	return metadataLimitSlots - 1
}

// defaultMetadataLimits returns the default per-type retention limits.
// Slot 0 (STREAMINFO) is unused: STREAMINFO is always parsed.
func defaultMetadataLimits() [metadataLimitSlots]uint32 {
	return [metadataLimitSlots]uint32{
		0,
		defaultMaxPaddingSize,
		defaultMaxApplicationSize,
		defaultMaxSeekTableSize,
		defaultMaxVorbisCommentSize,
		defaultMaxCueSheetSize,
		defaultMaxPictureSize,
		defaultMaxUnknownSize,
	}
}

// SetMaxMetadataSize sets the retention limit in bytes for one metadata
// block type. Blocks larger than the limit are skipped during header
// parsing; a limit of 0 skips the type entirely. STREAMINFO ignores limits.
func (d *Decoder) SetMaxMetadataSize(blockType MetadataType, maxSize uint32) {
	d.metadataLimits[limitSlot(blockType)] = maxSize
}

// MaxMetadataSize returns the current retention limit for one type.
func (d *Decoder) MaxMetadataSize(blockType MetadataType) uint32 {
	return d.metadataLimits[limitSlot(blockType)]
}

// MetadataBlocks returns every metadata block retained during header
// parsing, in stream order.
func (d *Decoder) MetadataBlocks() []MetadataBlock {
	return d.metadata
}

// MetadataBlockByType returns the first retained block of the given type, or
// nil when none was kept.
func (d *Decoder) MetadataBlockByType(blockType MetadataType) *MetadataBlock {
	for i := range d.metadata {
		if d.metadata[i].Type == blockType {
			return &d.metadata[i]
		}
	}

	return nil
}
