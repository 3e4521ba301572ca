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

// png package allows to parse, modify and serialize png streams on the chunk
// level. The pixel data is never decoded, the chunks are kept as is, so a
// stream which is parsed and serialized without modifications stays byte
// to byte the same:
//
// +----------------+---------+---------+-- --+---------+
// | signature (8b) | chunk 1 | chunk 2 | ... | chunk N |
// +----------------+---------+---------+-- --+---------+
//
// The package doesn't check the chunks order (IHDR first, IEND last etc.),
// this is up to the code which modifies the stream.
package png

import (
	"bytes"
	"strings"
)

type (
	// Png is an ordered list of chunks. Chunks of the same type may appear
	// more than once.
	Png struct {
		chunks []*Chunk
	}
)

// cSignature is the fixed header of every png stream
var cSignature = [8]byte{137, 80, 78, 71, 13, 10, 26, 10}

// Signature returns the fixed header of every png stream
func Signature() [8]byte {
	return cSignature
}

// New returns the Png which consists of the chunks provided, nil chunks
// are skipped
func New(chunks ...*Chunk) *Png {
	p := new(Png)
	p.chunks = make([]*Chunk, 0, len(chunks))
	for _, c := range chunks {
		p.Append(c)
	}
	return p
}

// Parse reads buf as png stream. It returns ErrInvalidSignature if buf
// doesn't start from the png signature, or ErrMalformedChunkStream if any of
// the chunks could not be read. The last one wraps the error returned by
// ParseChunk.
func Parse(buf []byte) (*Png, error) {
	if len(buf) < len(cSignature) || !bytes.Equal(buf[:len(cSignature)], cSignature[:]) {
		return nil, &Error{Kind: ErrInvalidSignature}
	}

	p := new(Png)
	offs := len(cSignature)
	for offs < len(buf) {
		c, err := ParseChunk(buf[offs:])
		if err != nil {
			return nil, &Error{Kind: ErrMalformedChunkStream, Offset: offs, cause: err}
		}
		p.chunks = append(p.chunks, c)
		offs += c.Size()
	}
	return p, nil
}

// Signature returns the png signature
func (p *Png) Signature() [8]byte {
	return cSignature
}

// Chunks returns the chunks in the stream order. The returned slice can be
// modified by the caller, it doesn't affect p.
func (p *Png) Chunks() []*Chunk {
	return append(make([]*Chunk, 0, len(p.chunks)), p.chunks...)
}

// Len returns number of chunks
func (p *Png) Len() int {
	return len(p.chunks)
}

// Append adds c to the end of the chunks list. Note, that it could be placed
// after IEND, which is not checked. nil c is ignored.
func (p *Png) Append(c *Chunk) {
	if c == nil {
		return
	}
	p.chunks = append(p.chunks, c)
}

// ChunkByType returns the first chunk with the type code, or nil if there
// is no such chunk
func (p *Png) ChunkByType(code string) *Chunk {
	if idx := p.indexOf(code); idx >= 0 {
		return p.chunks[idx]
	}
	return nil
}

// RemoveByType removes the first chunk with the type code and returns it.
// Only one chunk is removed even if there are several chunks of the type.
// ErrChunkNotFound is returned if there is no chunk with the code, p is not
// changed then.
func (p *Png) RemoveByType(code string) (*Chunk, error) {
	idx := p.indexOf(code)
	if idx < 0 {
		return nil, &Error{Kind: ErrChunkNotFound, ChunkType: code}
	}
	c := p.chunks[idx]
	copy(p.chunks[idx:], p.chunks[idx+1:])
	p.chunks[len(p.chunks)-1] = nil
	p.chunks = p.chunks[:len(p.chunks)-1]
	return c, nil
}

// Bytes returns the binary form of the stream
func (p *Png) Bytes() []byte {
	sz := len(cSignature)
	for _, c := range p.chunks {
		sz += c.Size()
	}

	buf := make([]byte, 0, sz)
	buf = append(buf, cSignature[:]...)
	for _, c := range p.chunks {
		buf = c.appendTo(buf)
	}
	return buf
}

// String returns the chunk type codes separated by spaces
func (p *Png) String() string {
	codes := make([]string, len(p.chunks))
	for i, c := range p.chunks {
		codes[i] = c.ct.String()
	}
	return strings.Join(codes, " ")
}

func (p *Png) indexOf(code string) int {
	for i, c := range p.chunks {
		if c.ct.String() == code {
			return i
		}
	}
	return -1
}
