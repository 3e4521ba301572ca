// Copyright 2018-2019 The logrange Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package png

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"unicode/utf8"

	"github.com/logrange/pngstash/pkg/utils"
)

type (
	// Chunk is a typed, length-prefixed and crc protected record of a png
	// stream. The binary form is:
	//
	// +--------------+-----------+-----------------+-----------+
	// | length (u32) | type (4b) | data (length b) | crc (u32) |
	// +--------------+-----------+-----------------+-----------+
	//
	// all integers are big-endian, crc is CRC-32/IEEE over type and data.
	//
	// The Chunk owns its data, the slices passed to NewChunk or returned by
	// Data() are copies.
	Chunk struct {
		ct   ChunkType
		data []byte
		crc  uint32
	}
)

const (
	cLengthSize = 4
	cTypeSize   = 4
	cCrcSize    = 4
	cHeaderSize = cLengthSize + cTypeSize

	// ChunkOverhead is number of bytes a chunk takes in addition to its data
	ChunkOverhead = cHeaderSize + cCrcSize

	// MaxLength is the maximum size of a chunk data
	MaxLength = 1<<31 - 1
)

// NewChunk creates the chunk with the type ct and the data provided. The crc
// is calculated immediately. ct is not checked for validity. The data must
// not be longer than MaxLength, NewChunk panics otherwise.
func NewChunk(ct ChunkType, data []byte) *Chunk {
	if !validLength(len(data)) {
		panic(fmt.Sprintf("png: chunk %s data is %d bytes, must not exceed %d", ct, len(data), MaxLength))
	}
	c := new(Chunk)
	c.ct = ct
	c.data = utils.BytesCopy(data)
	c.crc = checksum(ct, c.data)
	return c
}

// ParseChunk reads one chunk from the beginning of buf. The chunk takes
// exactly Size() bytes of buf, the rest of buf is ignored. The following
// errors could be returned:
//
// 	ErrUnexpectedEOF - buf is too short for the header or for the data and crc
// 	ErrCrcMismatch - the stored crc differs from the calculated one
func ParseChunk(buf []byte) (*Chunk, error) {
	if len(buf) < cHeaderSize {
		return nil, &Error{Kind: ErrUnexpectedEOF, Need: cHeaderSize, Have: len(buf)}
	}

	ln := uint64(binary.BigEndian.Uint32(buf))
	var ct ChunkType
	copy(ct[:], buf[cLengthSize:cHeaderSize])

	rest := buf[cHeaderSize:]
	if uint64(len(rest)) < ln+cCrcSize {
		return nil, &Error{Kind: ErrUnexpectedEOF, ChunkType: ct.String(), Need: int(ln + cCrcSize), Have: len(rest)}
	}

	data := rest[:ln]
	stored := binary.BigEndian.Uint32(rest[ln:])
	if crc := checksum(ct, data); crc != stored {
		return nil, &Error{Kind: ErrCrcMismatch, ChunkType: ct.String(), Expected: stored, Actual: crc}
	}

	c := new(Chunk)
	c.ct = ct
	c.data = utils.BytesCopy(data)
	c.crc = stored
	return c, nil
}

// Type returns the chunk type
func (c *Chunk) Type() ChunkType {
	return c.ct
}

// Length returns the data size in bytes
func (c *Chunk) Length() uint32 {
	return uint32(len(c.data))
}

// Size returns the number of bytes the chunk takes in the binary form
func (c *Chunk) Size() int {
	return len(c.data) + ChunkOverhead
}

// Data returns a copy of the chunk data
func (c *Chunk) Data() []byte {
	return utils.BytesCopy(c.data)
}

func (c *Chunk) Crc() uint32 {
	return c.crc
}

// DataAsString returns the data as a string. ErrInvalidUTF8 is returned if
// the data is not a valid utf-8 sequence.
func (c *Chunk) DataAsString() (string, error) {
	if !utf8.Valid(c.data) {
		return "", &Error{Kind: ErrInvalidUTF8, ChunkType: c.ct.String()}
	}
	return string(c.data), nil
}

// Bytes returns the binary form of the chunk
func (c *Chunk) Bytes() []byte {
	return c.appendTo(make([]byte, 0, c.Size()))
}

func (c *Chunk) String() string {
	return fmt.Sprintf("{type=%s, length=%d, crc=0x%08x}", c.ct, len(c.data), c.crc)
}

func (c *Chunk) appendTo(buf []byte) []byte {
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(c.data)))
	buf = append(buf, u32[:]...)
	buf = append(buf, c.ct[:]...)
	buf = append(buf, c.data...)
	binary.BigEndian.PutUint32(u32[:], c.crc)
	return append(buf, u32[:]...)
}

func checksum(ct ChunkType, data []byte) uint32 {
	crc := crc32.ChecksumIEEE(ct[:])
	return crc32.Update(crc, crc32.IEEETable, data)
}

func validLength(n int) bool {
	return n >= 0 && uint64(n) <= MaxLength
}
