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

// stash package hides text messages in png files. Every message is stored
// in its own chunk of the type chosen by the caller, the rest of the file is
// kept untouched.
package stash

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jrivets/log4g"
	"github.com/logrange/pngstash/pkg/png"
	"github.com/logrange/pngstash/pkg/storage"
	"github.com/pkg/errors"
)

type (
	// Stash runs the message operations over png files kept in the storage
	Stash struct {
		strg       storage.Storage
		maxMsgSize uint64
		logger     log4g.Logger
	}

	// ChunkInfo describes a chunk of a png file
	ChunkInfo struct {
		Type       string `json:"type"`
		Length     uint32 `json:"length"`
		Crc        uint32 `json:"crc"`
		Critical   bool   `json:"critical"`
		Public     bool   `json:"public"`
		SafeToCopy bool   `json:"safeToCopy"`
		Valid      bool   `json:"valid"`
	}
)

// ErrTooBig is returned when the message exceeds the configured size
var ErrTooBig = fmt.Errorf("the message is too big")

// New creates the Stash. cfg is checked and error is returned if it is
// not valid
func New(cfg *Config, strg storage.Storage) (*Stash, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	s := new(Stash)
	s.strg = strg
	s.maxMsgSize = cfg.maxMessageSize()
	s.logger = log4g.GetLogger("pngstash.stash")
	return s, nil
}

// Storage returns the storage the files are read from and written to
func (s *Stash) Storage() storage.Storage {
	return s.strg
}

// Load reads the file and parses it as a png stream
func (s *Stash) Load(file string) (*png.Png, error) {
	buf, err := s.strg.ReadData(file)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", file)
	}
	p, err := png.Parse(buf)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", file)
	}
	s.logger.Debug("Loaded ", file, ": ", humanize.Bytes(uint64(len(buf))), ", ", p.Len(), " chunks")
	return p, nil
}

// Save writes p to the file, replacing its content
func (s *Stash) Save(file string, p *png.Png) error {
	buf := p.Bytes()
	if err := s.strg.WriteData(file, buf); err != nil {
		return errors.Wrapf(err, "could not write %s", file)
	}
	s.logger.Debug("Saved ", file, ": ", humanize.Bytes(uint64(len(buf))), ", ", p.Len(), " chunks")
	return nil
}

// NewMessageChunk makes the chunk of the type code with msg as data. It
// returns an error if code is not 4 ASCII characters or msg is bigger than
// allowed.
func (s *Stash) NewMessageChunk(code, msg string) (*png.Chunk, error) {
	ct, err := png.ParseChunkType(code)
	if err != nil {
		return nil, err
	}
	if !ct.IsValid() {
		s.logger.Warn("Chunk type ", code, " is not a valid png chunk type, png readers may reject the file")
	} else if ct.IsCritical() {
		s.logger.Warn("Chunk type ", code, " is critical, png readers which don't know it will reject the file")
	}

	if uint64(len(msg)) > s.maxMsgSize {
		return nil, errors.Wrapf(ErrTooBig, "size=%s, but max=%s", humanize.Bytes(uint64(len(msg))), humanize.Bytes(s.maxMsgSize))
	}
	return png.NewChunk(ct, []byte(msg)), nil
}

// Encode appends the chunk with msg to the png from file and writes the
// result to out. If out is empty, the file is overwritten.
func (s *Stash) Encode(ctx context.Context, file, code, msg, out string) error {
	c, err := s.NewMessageChunk(code, msg)
	if err != nil {
		return err
	}
	if out == "" {
		out = file
	}

	unlock, err := s.strg.Lock(ctx, out)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := s.Load(file)
	if err != nil {
		return err
	}
	p.Append(c)
	if err := s.Save(out, p); err != nil {
		return err
	}
	s.logger.Info("Message of ", humanize.Bytes(uint64(c.Length())), " is encoded into ", code, " chunk of ", out)
	return nil
}

// Decode returns the data of the first chunk of the type code as a string
func (s *Stash) Decode(file, code string) (string, error) {
	p, err := s.Load(file)
	if err != nil {
		return "", err
	}
	c := p.ChunkByType(code)
	if c == nil {
		return "", &png.Error{Kind: png.ErrChunkNotFound, ChunkType: code}
	}
	return c.DataAsString()
}

// Remove removes the first chunk of the type code from the file. It returns
// the type of the removed chunk.
func (s *Stash) Remove(ctx context.Context, file, code string) (string, error) {
	unlock, err := s.strg.Lock(ctx, file)
	if err != nil {
		return "", err
	}
	defer unlock()

	p, err := s.Load(file)
	if err != nil {
		return "", err
	}
	c, err := p.RemoveByType(code)
	if err != nil {
		return "", err
	}
	if err := s.Save(file, p); err != nil {
		return "", err
	}
	s.logger.Info("Chunk ", c.Type(), " of ", humanize.Bytes(uint64(c.Length())), " is removed from ", file)
	return c.Type().String(), nil
}

// Print returns the types of all chunks of the file separated by spaces
func (s *Stash) Print(file string) (string, error) {
	p, err := s.Load(file)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// Describe returns information about every chunk of the file
func (s *Stash) Describe(file string) ([]ChunkInfo, error) {
	p, err := s.Load(file)
	if err != nil {
		return nil, err
	}
	return DescribePng(p), nil
}

// DescribePng returns information about every chunk of p in the stream order
func DescribePng(p *png.Png) []ChunkInfo {
	chunks := p.Chunks()
	res := make([]ChunkInfo, len(chunks))
	for i, c := range chunks {
		ct := c.Type()
		res[i] = ChunkInfo{
			Type:       ct.String(),
			Length:     c.Length(),
			Crc:        c.Crc(),
			Critical:   ct.IsCritical(),
			Public:     ct.IsPublic(),
			SafeToCopy: ct.IsSafeToCopy(),
			Valid:      ct.IsValid(),
		}
	}
	return res
}
