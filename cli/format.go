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
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/logrange/pngstash/pkg/stash"
	"github.com/logrange/pngstash/pkg/utils"
)

// PrintChunks writes the chunks table to w, one chunk per line, and the
// totals at the end
func PrintChunks(w io.Writer, cis []stash.ChunkInfo) {
	var total uint64
	fmt.Fprintf(w, "%4s  %-4s %10s  %-10s  %s\n", "#", "TYPE", "SIZE", "CRC", "FLAGS")
	for i, ci := range cis {
		total += uint64(ci.Length)
		fmt.Fprintf(w, "%4d  %-4s %10s  0x%08x  %s\n", i, ci.Type, humanize.Bytes(uint64(ci.Length)), ci.Crc, flags(ci))
	}
	fmt.Fprintf(w, "\n%s chunks, %s of data\n", humanize.Comma(int64(len(cis))), humanize.Bytes(total))
}

// PrintChunksJson writes the chunks as a json array
func PrintChunksJson(w io.Writer, cis []stash.ChunkInfo) {
	if cis == nil {
		cis = []stash.ChunkInfo{}
	}
	fmt.Fprintln(w, utils.ToJsonStr(cis))
}

func flags(ci stash.ChunkInfo) string {
	res := []byte("----")
	if ci.Critical {
		res[0] = 'C'
	}
	if ci.Public {
		res[1] = 'P'
	}
	if ci.SafeToCopy {
		res[2] = 'S'
	}
	if !ci.Valid {
		res[3] = '!'
	}
	return string(res)
}
