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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"

	"github.com/logrange/pngstash/pkg/stash"
	"github.com/logrange/pngstash/pkg/storage"
	"github.com/logrange/pngstash/pkg/utils"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

type (
	// Config struct just aggregate different types of configs in one place
	Config struct {
		Storage *storage.Config `json:"storage"`
		Stash   *stash.Config   `json:"stash"`

		// HistoryFile is the shell commands history file
		HistoryFile string `json:"historyFile"`
	}
)

const (
	shellHistoryFileName = ".pngstash_history"
)

//===================== config =====================

func NewDefaultConfig() *Config {
	return &Config{
		Storage:     storage.NewDefaultConfig(),
		Stash:       stash.NewDefaultConfig(),
		HistoryFile: historyFilePath(),
	}
}

// LoadCfgFromFile reads the json config. Values could be of a wrong json
// type, like "true" for a boolean, they are converted where possible.
func LoadCfgFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err = json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "could not unmarshal json data from config file %s", path)
	}

	cfg := &Config{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err = dec.Decode(raw); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", path)
	}
	return cfg, nil
}

func (c *Config) Apply(other *Config) {
	if other == nil {
		return
	}
	c.Storage.Apply(other.Storage)
	c.Stash.Apply(other.Stash)
	if other.HistoryFile != "" {
		c.HistoryFile = other.HistoryFile
	}
}

func (c *Config) Check() error {
	if c.Storage == nil {
		return fmt.Errorf("invalid config; storage=%v, must be non-nil", c.Storage)
	}
	if c.Stash == nil {
		return fmt.Errorf("invalid config; stash=%v, must be non-nil", c.Stash)
	}
	if err := c.Storage.Check(); err != nil {
		return err
	}
	return c.Stash.Check()
}

func (c *Config) String() string {
	return utils.ToJsonStr(c)
}

func historyFilePath() string {
	var fileDir = os.TempDir()
	usr, err := user.Current()
	if err == nil {
		fileDir = usr.HomeDir
	}
	return filepath.Join(fileDir, shellHistoryFileName)
}
