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

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/logrange/pngstash/pkg/stash"
	"github.com/stretchr/testify/assert"
)

func TestPrintChunksJson(t *testing.T) {
	var buf bytes.Buffer
	PrintChunksJson(&buf, nil)
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	PrintChunksJson(&buf, []stash.ChunkInfo{{Type: "ruSt", Length: 6, Crc: 1, SafeToCopy: true, Valid: true}})
	assert.Equal(t, `[{"type":"ruSt","length":6,"crc":1,"critical":false,"public":false,"safeToCopy":true,"valid":true}]`+"\n", buf.String())
}

func TestPrintChunks(t *testing.T) {
	var buf bytes.Buffer
	PrintChunks(&buf, []stash.ChunkInfo{
		{Type: "IHDR", Length: 13, Critical: true, Public: true, Valid: true},
		{Type: "Ru1t", Length: 2048},
	})
	out := buf.String()
	assert.Contains(t, out, "13 B")
	assert.Contains(t, out, "2.0 kB")
	assert.Contains(t, out, "CP--")
	assert.Contains(t, out, "---!")
	assert.True(t, strings.HasSuffix(out, "2 chunks, 2.1 kB of data\n"))
}
