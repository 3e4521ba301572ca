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
	"fmt"

	"github.com/pkg/errors"
)

type (
	// ErrorKind identifies the reason a png operation failed
	ErrorKind int

	// Error is the only error type returned by the package. Kind tells what
	// went wrong, the rest of the fields carry the context which is relevant
	// for the kind (not all of them are set for every kind).
	Error struct {
		Kind ErrorKind

		// ChunkType contains the type code the error is related to
		ChunkType string

		// Offset is the position in the parsed buffer where the failing
		// chunk starts
		Offset int

		// Need and Have are the byte counts for ErrUnexpectedEOF
		Need int
		Have int

		// Expected is the stored crc, Actual is the computed one
		Expected uint32
		Actual   uint32

		cause error
	}
)

const (
	ErrInvalidChunkType ErrorKind = iota + 1
	ErrInvalidSignature
	ErrUnexpectedEOF
	ErrCrcMismatch
	ErrMalformedChunkStream
	ErrInvalidUTF8
	ErrChunkNotFound
)

var kindNames = map[ErrorKind]string{
	ErrInvalidChunkType:     "InvalidChunkType",
	ErrInvalidSignature:     "InvalidSignature",
	ErrUnexpectedEOF:        "UnexpectedEof",
	ErrCrcMismatch:          "CrcMismatch",
	ErrMalformedChunkStream: "MalformedChunkStream",
	ErrInvalidUTF8:          "InvalidUtf8",
	ErrChunkNotFound:        "ChunkNotFound",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidChunkType:
		return fmt.Sprintf("invalid chunk type %q: exactly 4 ASCII characters expected", e.ChunkType)
	case ErrInvalidSignature:
		return "invalid signature: the data is not a png stream"
	case ErrUnexpectedEOF:
		return fmt.Sprintf("unexpected end of data: need %d bytes, but only %d available", e.Need, e.Have)
	case ErrCrcMismatch:
		return fmt.Sprintf("crc mismatch for chunk %q: stored=0x%08x, computed=0x%08x", e.ChunkType, e.Expected, e.Actual)
	case ErrMalformedChunkStream:
		return fmt.Sprintf("malformed chunk stream at offset %d: %v", e.Offset, e.cause)
	case ErrInvalidUTF8:
		return fmt.Sprintf("data of chunk %q is not a valid utf-8 string", e.ChunkType)
	case ErrChunkNotFound:
		return fmt.Sprintf("chunk with type %q not found", e.ChunkType)
	}
	return e.Kind.String()
}

// Cause returns the error this one wraps, if any. It makes the Error
// compatible with errors.Cause()
func (e *Error) Cause() error {
	return e.cause
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsKind returns whether err or any of the errors it wraps is an *Error of
// the kind k.
func IsKind(err error, k ErrorKind) bool {
	var pe *Error
	for errors.As(err, &pe) {
		if pe.Kind == k {
			return true
		}
		if pe.cause == nil {
			return false
		}
		err = pe.cause
	}
	return false
}

// KindOf returns the kind of the first *Error found in err chain, or 0 if
// err is not produced by the package.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
