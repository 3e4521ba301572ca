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
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/kr/logfmt"
	"github.com/logrange/pngstash/pkg/png"
	"github.com/logrange/pngstash/pkg/stash"
	"github.com/logrange/pngstash/pkg/storage"
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
)

type (
	command struct {
		name    string
		aliases []string
		matcher *regexp.Regexp
		cmdFn   cmdFn
		help    string
	}

	// session keeps the png file loaded by the shell. All the changes are
	// made in memory until save command.
	session struct {
		cfg   *Config
		file  string
		stsh  *stash.Stash
		png   *png.Png
		dirty bool
		quit  bool
		// aborted is set by the first abort() with unsaved changes
		aborted bool
		out     io.Writer
	}

	// options is the logfmt handler for setopt command
	options map[string]string

	cmdFn func(ctx context.Context, s *session, args map[string]string) error
)

const (
	cmdListName   = "list"
	cmdEncodeName = "encode"
	cmdDecodeName = "decode"
	cmdRemoveName = "remove"
	cmdSaveName   = "save"
	cmdSetOptName = "setoption"
	cmdQuitName   = "quit"
	cmdHelpName   = "help"

	optBackup     = "backup"
	optMaxMsgSize = "max-message-size"
	optLockWaitMs = "lock-wait-ms"

	rgTypeGrp  = "type"
	rgMsgGrp   = "msg"
	rgPathGrp  = "path"
	rgOptsGrp  = "opts"
	rgForceGrp = "force"
)

var commands []command

func init() {
	commands = []command{
		{
			name:    cmdListName,
			aliases: []string{"ls"},
			matcher: regexp.MustCompile(`(?i)^(?:list|ls)$`),
			cmdFn:   listFn,
			help:    "list chunks of the file",
		},
		{
			name:    cmdEncodeName,
			matcher: regexp.MustCompile(`(?i)^encode\s+(?P<type>\S+)\s+(?P<msg>.+)$`),
			cmdFn:   encodeFn,
			help:    "add a message chunk, e.g. 'encode ruSt \"my secret\"'",
		},
		{
			name:    cmdDecodeName,
			matcher: regexp.MustCompile(`(?i)^decode\s+(?P<type>\S+)$`),
			cmdFn:   decodeFn,
			help:    "print the message of the first chunk of the type, e.g. 'decode ruSt'",
		},
		{
			name:    cmdRemoveName,
			aliases: []string{"rm"},
			matcher: regexp.MustCompile(`(?i)^(?:remove|rm)\s+(?P<type>\S+)$`),
			cmdFn:   removeFn,
			help:    "remove the first chunk of the type, e.g. 'remove ruSt'",
		},
		{
			name:    cmdSaveName,
			matcher: regexp.MustCompile(`(?i)^save(?:\s+(?P<path>\S+))?$`),
			cmdFn:   saveFn,
			help:    "write the changes to the file or to another one, e.g. 'save /tmp/out.png'",
		},
		{
			name:    cmdSetOptName,
			aliases: []string{"setopt"},
			matcher: regexp.MustCompile(`(?i)^(?:setoption|setopt)\s+(?P<opts>.+)$`),
			cmdFn:   setoptFn,
			help:    "set options, e.g. 'setopt backup=true max-message-size=10KiB lock-wait-ms=500'",
		},
		{
			name:    cmdQuitName,
			aliases: []string{"exit"},
			matcher: regexp.MustCompile(`(?i)^(?:quit|exit)(?P<force>!?)$`),
			cmdFn:   quitFn,
			help:    "exit the program, 'quit!' drops unsaved changes",
		},
		{
			name:    cmdHelpName,
			matcher: regexp.MustCompile(`(?i)^help$`),
			cmdFn:   helpFn,
			help:    "show help",
		},
	}
}

func newSession(cfg *Config, file string, out io.Writer) (*session, error) {
	s := &session{file: file, out: out}
	if err := s.setConfig(cfg); err != nil {
		return nil, err
	}

	p, err := s.stsh.Load(file)
	if err != nil {
		return nil, err
	}
	s.png = p
	return s, nil
}

func (s *session) setConfig(cfg *Config) error {
	if err := cfg.Check(); err != nil {
		return err
	}
	strg, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return err
	}
	stsh, err := stash.New(cfg.Stash, strg)
	if err != nil {
		return err
	}
	s.cfg = cfg
	s.stsh = stsh
	return nil
}

func (s *session) exec(ctx context.Context, input string) error {
	s.aborted = false
	word := ""
	if f := strings.Fields(input); len(f) > 0 {
		word = strings.TrimSuffix(strings.ToLower(f[0]), "!")
	}

	for _, d := range commands {
		if !d.matcher.MatchString(input) {
			if d.isNamed(word) {
				return fmt.Errorf("command %s - invalid syntax", d.name)
			}
			continue
		}
		return d.cmdFn(ctx, s, matchGroups(d.matcher, input))
	}
	return fmt.Errorf("unknown command, type 'help' to see the list")
}

// abort is called when the shell input is interrupted by Ctrl-C or EOF. It
// returns whether the shell can exit. The unsaved changes are dropped only
// if abort is repeated without a command in between.
func (s *session) abort() bool {
	if !s.dirty || s.aborted {
		return true
	}
	s.aborted = true
	fmt.Fprintln(s.out, "there are unsaved changes, use 'save' to keep them or 'quit!' to drop, repeat to exit anyway")
	return false
}

func (d *command) isNamed(word string) bool {
	if word == d.name {
		return true
	}
	for _, a := range d.aliases {
		if word == a {
			return true
		}
	}
	return false
}

func matchGroups(rg *regexp.Regexp, input string) map[string]string {
	res := make(map[string]string)
	match := rg.FindStringSubmatch(input)
	for i, name := range rg.SubexpNames() {
		if i > 0 && name != "" && i < len(match) {
			res[name] = match[i]
		}
	}
	return res
}

//===================== commands =====================

func listFn(ctx context.Context, s *session, args map[string]string) error {
	PrintChunks(s.out, stash.DescribePng(s.png))
	return nil
}

func encodeFn(ctx context.Context, s *session, args map[string]string) error {
	msg := strings.TrimSpace(args[rgMsgGrp])
	if strings.HasPrefix(msg, "\"") {
		m, err := strconv.Unquote(msg)
		if err != nil {
			return errors.Wrapf(err, "could not unquote message %s", msg)
		}
		msg = m
	}

	c, err := s.stsh.NewMessageChunk(args[rgTypeGrp], msg)
	if err != nil {
		return err
	}
	s.png.Append(c)
	s.dirty = true
	fmt.Fprintln(s.out, "added", c)
	return nil
}

func decodeFn(ctx context.Context, s *session, args map[string]string) error {
	c := s.png.ChunkByType(args[rgTypeGrp])
	if c == nil {
		return &png.Error{Kind: png.ErrChunkNotFound, ChunkType: args[rgTypeGrp]}
	}
	msg, err := c.DataAsString()
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, msg)
	return nil
}

func removeFn(ctx context.Context, s *session, args map[string]string) error {
	c, err := s.png.RemoveByType(args[rgTypeGrp])
	if err != nil {
		return err
	}
	s.dirty = true
	fmt.Fprintln(s.out, "removed", c)
	return nil
}

func saveFn(ctx context.Context, s *session, args map[string]string) error {
	file := args[rgPathGrp]
	if file == "" {
		file = s.file
	}

	unlock, err := s.stsh.Storage().Lock(ctx, file)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.stsh.Save(file, s.png); err != nil {
		return err
	}
	if file == s.file {
		s.dirty = false
	}
	fmt.Fprintln(s.out, "saved to", file)
	return nil
}

func setoptFn(ctx context.Context, s *session, args map[string]string) error {
	opts := make(options)
	if err := logfmt.Unmarshal([]byte(args[rgOptsGrp]), opts); err != nil {
		return errors.Wrapf(err, "could not parse options %q", args[rgOptsGrp])
	}

	cfg := deepcopy.Copy(s.cfg).(*Config)
	for k, v := range opts {
		switch strings.ToLower(k) {
		case optBackup:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s expects true or false, but %q", optBackup, v)
			}
			cfg.Storage.Backup = b
		case optMaxMsgSize:
			cfg.Stash.MaxMessageSize = v
		case optLockWaitMs:
			ms, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s expects an integer, but %q", optLockWaitMs, v)
			}
			cfg.Storage.LockWaitMs = ms
		default:
			return fmt.Errorf("unknown option %s, known ones are %s, %s, %s", k, optBackup, optMaxMsgSize, optLockWaitMs)
		}
	}

	if err := s.setConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "options are set")
	return nil
}

func quitFn(ctx context.Context, s *session, args map[string]string) error {
	if s.dirty && args[rgForceGrp] == "" {
		return fmt.Errorf("there are unsaved changes, use 'save' to keep them or 'quit!' to drop")
	}
	s.quit = true
	return nil
}

func helpFn(ctx context.Context, s *session, args map[string]string) error {
	fmt.Fprintln(s.out, "commands:")
	for _, d := range commands {
		name := d.name
		if len(d.aliases) > 0 {
			name += "|" + strings.Join(d.aliases, "|")
		}
		fmt.Fprintf(s.out, "  %-16s - %s\n", name, d.help)
	}
	return nil
}

func (o options) HandleLogfmt(key, val []byte) error {
	o[string(key)] = string(val)
	return nil
}
