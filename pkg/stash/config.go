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
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/logrange/pngstash/pkg/png"
)

type (
	Config struct {
		// MaxMessageSize is the biggest message which can be encoded, in
		// human readable form, e.g. "1MiB" or "500kB"
		MaxMessageSize string `json:"maxMessageSize"`
	}
)

//===================== config =====================

func NewDefaultConfig() *Config {
	return &Config{MaxMessageSize: "1MiB"}
}

func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}
	if strings.TrimSpace(other.MaxMessageSize) != "" {
		c.MaxMessageSize = other.MaxMessageSize
	}
}

func (c *Config) Check() error {
	sz, err := humanize.ParseBytes(c.MaxMessageSize)
	if err != nil {
		return fmt.Errorf("invalid config; maxMessageSize=%q could not be parsed: %v", c.MaxMessageSize, err)
	}
	if sz == 0 || sz > png.MaxLength {
		return fmt.Errorf("invalid config; maxMessageSize=%q, must be in (0..%s]", c.MaxMessageSize, humanize.IBytes(png.MaxLength))
	}
	return nil
}

func (c *Config) maxMessageSize() uint64 {
	sz, _ := humanize.ParseBytes(c.MaxMessageSize)
	return sz
}
