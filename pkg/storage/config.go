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

package storage

import (
	"fmt"
	"time"

	"github.com/logrange/pngstash/pkg/utils"
)

type (
	Config struct {
		Type StorageType `json:"type"`

		// Backup makes the file storage to keep the previous file content
		// in <file>.bak before overwriting it
		Backup bool `json:"backup"`

		// LockWaitMs defines how long to wait for the file lock acquired by
		// another process. 0 means don't wait.
		LockWaitMs int `json:"lockWaitMs"`
	}
)

//===================== config =====================

func NewDefaultConfig() *Config {
	return &Config{
		Type:       TypeFile,
		LockWaitMs: 3000,
	}
}

func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}
	if other.Type != "" {
		c.Type = other.Type
	}
	if other.Backup {
		c.Backup = true
	}
	if other.LockWaitMs > 0 {
		c.LockWaitMs = other.LockWaitMs
	}
}

func (c *Config) Check() error {
	switch c.Type {
	case TypeFile, TypeInMem:
	case "":
		return fmt.Errorf("invalid config; type=%v, must be non-empty", c.Type)
	default:
		return fmt.Errorf("invalid config; unknown type=%v", c.Type)
	}

	if c.LockWaitMs < 0 {
		return fmt.Errorf("invalid config; lockWaitMs=%d, must be non-negative", c.LockWaitMs)
	}
	return nil
}

// LockWait returns LockWaitMs as time.Duration
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.LockWaitMs) * time.Millisecond
}

func (c *Config) String() string {
	return utils.ToJsonStr(c)
}
