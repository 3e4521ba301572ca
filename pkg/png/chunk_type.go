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

// ChunkType is the 4 bytes chunk type code. Bit 5 of every byte is a
// property bit:
//
// +-----------+-----------+-----------+-----------+
// | byte 0    | byte 1    | byte 2    | byte 3    |
// | ancillary | private   | reserved  | safe-copy |
// +-----------+-----------+-----------+-----------+
//
// ChunkType is a value type, two types are equal when their bytes are equal.
// A ChunkType may hold bytes which are not a valid code, use IsValid() to
// check it.
type ChunkType [4]byte

const cPropertyBit = 0x20

// ChunkTypeFromBytes returns the ChunkType for b as is, no checks are made
func ChunkTypeFromBytes(b [4]byte) ChunkType {
	return ChunkType(b)
}

// ParseChunkType turns s to ChunkType. s must be exactly 4 ASCII characters,
// ErrInvalidChunkType is returned otherwise.
func ParseChunkType(s string) (ChunkType, error) {
	var ct ChunkType
	if len(s) != len(ct) {
		return ct, &Error{Kind: ErrInvalidChunkType, ChunkType: s}
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return ct, &Error{Kind: ErrInvalidChunkType, ChunkType: s}
		}
		ct[i] = s[i]
	}
	return ct, nil
}

// Bytes returns the type code bytes
func (ct ChunkType) Bytes() [4]byte {
	return ct
}

// IsValid returns true if all the bytes are ASCII letters and the reserved
// bit is not set
func (ct ChunkType) IsValid() bool {
	return ct.isAlphabetic() && ct.IsReservedBitValid()
}

// IsCritical returns true for critical chunks, false for ancillary ones
func (ct ChunkType) IsCritical() bool {
	return ct[0]&cPropertyBit == 0
}

// IsPublic returns true for public chunks, false for private ones
func (ct ChunkType) IsPublic() bool {
	return ct[1]&cPropertyBit == 0
}

func (ct ChunkType) IsReservedBitValid() bool {
	return ct[2]&cPropertyBit == 0
}

func (ct ChunkType) IsSafeToCopy() bool {
	return ct[3]&cPropertyBit != 0
}

func (ct ChunkType) String() string {
	return string(ct[:])
}

func (ct ChunkType) isAlphabetic() bool {
	for _, b := range ct {
		if !(b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z') {
			return false
		}
	}
	return true
}
