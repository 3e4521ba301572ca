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
	"os"
	"strings"

	"github.com/jrivets/log4g"
	"github.com/logrange/pngstash/pkg/utils"
	"github.com/peterh/liner"
)

type (
	shell struct {
		ses   *session
		hfile string
	}
)

var logger = log4g.GetLogger("pngstash.shell")

// Shell loads the png file and runs the interactive shell over it
func Shell(cfg *Config, file string) error {
	ses, err := newSession(cfg, file, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d chunks, type 'help' for the list of commands\n", file, ses.png.Len())
	newShell(ses, cfg.HistoryFile).run()
	return nil
}

func printError(err error) {
	_, _ = fmt.Fprintln(os.Stderr, err)
}

//===================== shell =====================

func newShell(ses *session, hFile string) *shell {
	s := new(shell)
	s.ses = ses
	s.hfile = hFile
	return s
}

func (s *shell) run() {
	lnr := liner.NewLiner()
	lnr.SetCtrlCAborts(true)

	s.loadHistory(lnr)
	beforeQuit := func() {
		s.saveHistory(lnr)
		_ = lnr.Close()
		fmt.Println("bye!")
	}
	defer beforeQuit()

	for !s.ses.quit {
		inp, err := lnr.Prompt("png>")
		if err == io.EOF || err == liner.ErrPromptAborted {
			if s.ses.abort() {
				break
			}
			continue
		}
		if err != nil {
			printError(err)
		}

		inp = strings.TrimSpace(inp)
		if inp == "" {
			continue
		}

		lnr.AppendHistory(inp)
		ctx, cancel := utils.NewSignalCtx(func(s os.Signal) {
			logger.Warn("Handling signal=", s)
		})
		err = s.ses.exec(ctx, inp)
		cancel()
		if err != nil {
			printError(err)
		}
	}
}

func (s *shell) loadHistory(lnr *liner.State) {
	if s.hfile == "" {
		return
	}
	f, err := os.OpenFile(s.hfile, os.O_RDONLY|os.O_CREATE, 0640)
	if err != nil {
		logger.Warn("Could not open history file ", s.hfile, ", err=", err)
		return
	}
	defer f.Close()
	if _, err = lnr.ReadHistory(f); err != nil {
		logger.Warn("Could not read history from ", s.hfile, ", err=", err)
	}
}

func (s *shell) saveHistory(lnr *liner.State) {
	if s.hfile == "" {
		return
	}
	f, err := os.OpenFile(s.hfile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		logger.Warn("Could not open history file ", s.hfile, ", err=", err)
		return
	}
	defer f.Close()
	if _, err = lnr.WriteHistory(f); err != nil {
		logger.Warn("Could not write history to ", s.hfile, ", err=", err)
	}
}
