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

package stash

import (
	"bytes"
	"context"
	"image"
	"image/color"
	stdpng "image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/logrange/pngstash/pkg/png"
	"github.com/logrange/pngstash/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 4; i++ {
		img.Set(i, i, color.NRGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.Nil(t, stdpng.Encode(&buf, img))
	return buf.Bytes()
}

func testStash(t *testing.T, maxSize string) (*Stash, storage.Storage) {
	strg, err := storage.NewStorage(&storage.Config{Type: storage.TypeInMem})
	require.Nil(t, err)
	cfg := NewDefaultConfig()
	cfg.Apply(&Config{MaxMessageSize: maxSize})
	s, err := New(cfg, strg)
	require.Nil(t, err)
	return s, strg
}

func TestConfig(t *testing.T) {
	c := NewDefaultConfig()
	assert.Nil(t, c.Check())
	assert.Equal(t, uint64(1<<20), c.maxMessageSize())

	c.Apply(&Config{MaxMessageSize: "10 kB"})
	assert.Nil(t, c.Check())
	assert.Equal(t, uint64(10000), c.maxMessageSize())

	assert.NotNil(t, (&Config{MaxMessageSize: "lots"}).Check())
	assert.NotNil(t, (&Config{MaxMessageSize: "0"}).Check())
	assert.NotNil(t, (&Config{MaxMessageSize: "3GiB"}).Check())
}

func TestEncodeDecode(t *testing.T) {
	s, strg := testStash(t, "")
	require.Nil(t, strg.WriteData("a.png", testImage(t)))

	require.Nil(t, s.Encode(context.Background(), "a.png", "ruSt", "secret", ""))
	msg, err := s.Decode("a.png", "ruSt")
	assert.Nil(t, err)
	assert.Equal(t, "secret", msg)

	types, err := s.Print("a.png")
	assert.Nil(t, err)
	assert.Equal(t, "IHDR IDAT IEND ruSt", types)
}

func TestEncodeToOutput(t *testing.T) {
	s, strg := testStash(t, "")
	orig := testImage(t)
	require.Nil(t, strg.WriteData("a.png", orig))

	require.Nil(t, s.Encode(context.Background(), "a.png", "ruSt", "secret", "b.png"))
	buf, _ := strg.ReadData("a.png")
	assert.Equal(t, orig, buf)

	msg, err := s.Decode("b.png", "ruSt")
	assert.Nil(t, err)
	assert.Equal(t, "secret", msg)
}

func TestEncodeErrors(t *testing.T) {
	s, strg := testStash(t, "4B")
	require.Nil(t, strg.WriteData("a.png", testImage(t)))

	err := s.Encode(context.Background(), "a.png", "ru", "abc", "")
	assert.True(t, png.IsKind(err, png.ErrInvalidChunkType))

	err = s.Encode(context.Background(), "a.png", "ruSt", "secret", "")
	assert.Equal(t, ErrTooBig, errors.Cause(err))

	err = s.Encode(context.Background(), "none.png", "ruSt", "abc", "")
	assert.True(t, os.IsNotExist(errors.Cause(err)))

	require.Nil(t, strg.WriteData("bad.png", []byte("GIF89a")))
	err = s.Encode(context.Background(), "bad.png", "ruSt", "abc", "")
	assert.True(t, png.IsKind(err, png.ErrInvalidSignature))
}

func TestDecodeErrors(t *testing.T) {
	s, strg := testStash(t, "")
	require.Nil(t, strg.WriteData("a.png", testImage(t)))

	_, err := s.Decode("a.png", "ruSt")
	assert.True(t, png.IsKind(err, png.ErrChunkNotFound))

	p, err := s.Load("a.png")
	require.Nil(t, err)
	p.Append(png.NewChunk(png.ChunkTypeFromBytes([4]byte{'b', 'i', 'N', 'a'}), []byte{0xff, 0xfe}))
	require.Nil(t, s.Save("a.png", p))
	_, err = s.Decode("a.png", "biNa")
	assert.True(t, png.IsKind(err, png.ErrInvalidUTF8))
}

func TestRemove(t *testing.T) {
	s, strg := testStash(t, "")
	require.Nil(t, strg.WriteData("a.png", testImage(t)))
	require.Nil(t, s.Encode(context.Background(), "a.png", "ruSt", "one", ""))
	require.Nil(t, s.Encode(context.Background(), "a.png", "ruSt", "two", ""))

	ct, err := s.Remove(context.Background(), "a.png", "ruSt")
	assert.Nil(t, err)
	assert.Equal(t, "ruSt", ct)

	msg, err := s.Decode("a.png", "ruSt")
	assert.Nil(t, err)
	assert.Equal(t, "two", msg)

	_, err = s.Remove(context.Background(), "a.png", "ruSt")
	assert.Nil(t, err)
	before, _ := strg.ReadData("a.png")
	_, err = s.Remove(context.Background(), "a.png", "ruSt")
	assert.True(t, png.IsKind(err, png.ErrChunkNotFound))
	after, _ := strg.ReadData("a.png")
	assert.Equal(t, before, after)
	assert.Equal(t, testImage(t), after)
}

func TestDescribe(t *testing.T) {
	s, strg := testStash(t, "")
	require.Nil(t, strg.WriteData("a.png", testImage(t)))
	require.Nil(t, s.Encode(context.Background(), "a.png", "ruSt", "secret", ""))

	cis, err := s.Describe("a.png")
	require.Nil(t, err)
	require.Equal(t, 4, len(cis))
	assert.Equal(t, ChunkInfo{Type: "IHDR", Length: 13, Crc: cis[0].Crc, Critical: true, Public: true, Valid: true}, cis[0])
	assert.Equal(t, "ruSt", cis[3].Type)
	assert.Equal(t, uint32(6), cis[3].Length)
	assert.False(t, cis[3].Critical)
	assert.False(t, cis[3].Public)
	assert.True(t, cis[3].SafeToCopy)
}

func TestFileRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "stashTest")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "img.png")
	orig := testImage(t)
	require.Nil(t, ioutil.WriteFile(fn, orig, 0640))

	strg, err := storage.NewStorage(storage.NewDefaultConfig())
	require.Nil(t, err)
	s, err := New(NewDefaultConfig(), strg)
	require.Nil(t, err)

	require.Nil(t, s.Encode(context.Background(), fn, "ruSt", "hidden in plain sight", ""))
	data, err := ioutil.ReadFile(fn)
	require.Nil(t, err)

	// the image is still readable and the pixels are the same
	img, err := stdpng.Decode(bytes.NewReader(data))
	require.Nil(t, err)
	origImg, _ := stdpng.Decode(bytes.NewReader(orig))
	assert.Equal(t, origImg, img)

	msg, err := s.Decode(fn, "ruSt")
	assert.Nil(t, err)
	assert.Equal(t, "hidden in plain sight", msg)

	_, err = s.Remove(context.Background(), fn, "ruSt")
	assert.Nil(t, err)
	data, _ = ioutil.ReadFile(fn)
	assert.Equal(t, orig, data)
}
