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

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/jrivets/log4g"
	"github.com/logrange/pngstash"
	"github.com/logrange/pngstash/cli"
	"github.com/logrange/pngstash/pkg/stash"
	"github.com/logrange/pngstash/pkg/storage"
	"github.com/logrange/pngstash/pkg/utils"
	"github.com/pkg/errors"
	ucli "gopkg.in/urfave/cli.v2"
)

const (
	argCfgFile       = "config-file"
	argLogCfgFile    = "log-config-file"
	argBackup        = "backup"
	argMaxMsgSize    = "max-message-size"
	argOutput        = "output"
	argPrintJson     = "json"
	argPrintVerbose  = "verbose"
	argLockWaitMs    = "lock-wait-ms"
	argHistoryFile   = "history-file"
	defaultLogConfig = "/etc/pngstash/log4g.properties"
)

var (
	logger = log4g.GetLogger("pngstash")
)

// main function is an entry point for 'pngstash' command. The commands are:
// 		encode	- add a message to a png file
//		decode	- print the message from a png file
// 		remove	- remove a message chunk from a png file
// 		print 	- print the chunks of a png file
// 		shell	- interactive editing of a png file
func main() {
	defer log4g.Shutdown()

	cmnFlags := []ucli.Flag{
		&ucli.StringFlag{
			Name:  argCfgFile,
			Usage: "configuration file path",
		},
		&ucli.StringFlag{
			Name:  argLogCfgFile,
			Usage: "log4g configuration file path",
			Value: defaultLogConfig,
		},
		&ucli.IntFlag{
			Name:  argLockWaitMs,
			Usage: "how long to wait for the file lock held by another process, in milliseconds",
		},
	}

	writeFlags := []ucli.Flag{
		&ucli.BoolFlag{
			Name:  argBackup,
			Usage: "keep the previous file content in <file>.bak",
		},
	}
	writeFlags = append(writeFlags, cmnFlags...)

	encodeFlags := []ucli.Flag{
		&ucli.StringFlag{
			Name:    argOutput,
			Aliases: []string{"o"},
			Usage:   "write the result to the file instead of overwriting the source one",
		},
		&ucli.StringFlag{
			Name:  argMaxMsgSize,
			Usage: "maximum message size, e.g. \"10KiB\"",
		},
	}
	encodeFlags = append(encodeFlags, writeFlags...)

	printFlags := []ucli.Flag{
		&ucli.BoolFlag{
			Name:  argPrintJson,
			Usage: "print chunks description in json",
		},
		&ucli.BoolFlag{
			Name:    argPrintVerbose,
			Aliases: []string{"v"},
			Usage:   "print chunks table with sizes and flags",
		},
	}
	printFlags = append(printFlags, cmnFlags...)

	shellFlags := []ucli.Flag{
		&ucli.StringFlag{
			Name:  argHistoryFile,
			Usage: "shell history file",
		},
	}
	shellFlags = append(shellFlags, encodeFlags[1:]...)

	app := &ucli.App{
		Name:    "pngstash",
		Version: pngstash.Version,
		Usage:   "Hide secret messages in png files",
		Commands: []*ucli.Command{
			{
				Name:      "encode",
				Usage:     "Encode the secret message into a chunk",
				ArgsUsage: "<file> <chunk type> <message>",
				Action:    runEncode,
				Flags:     encodeFlags,
			},
			{
				Name:      "decode",
				Usage:     "Decode the secret message from a chunk",
				ArgsUsage: "<file> <chunk type>",
				Action:    runDecode,
				Flags:     cmnFlags,
			},
			{
				Name:      "remove",
				Usage:     "Remove a chunk by its type",
				ArgsUsage: "<file> <chunk type>",
				Action:    runRemove,
				Flags:     writeFlags,
			},
			{
				Name:      "print",
				Usage:     "Print all chunks of the file",
				ArgsUsage: "<file>",
				Action:    runPrint,
				Flags:     printFlags,
			},
			{
				Name:      "shell",
				Usage:     "Run interactive shell over the file",
				ArgsUsage: "<file>",
				Action:    runShell,
				Flags:     shellFlags,
			},
		},
	}

	for _, c := range app.Commands {
		sort.Sort(ucli.FlagsByName(c.Flags))
	}
	sort.Sort(ucli.CommandsByName(app.Commands))

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		log4g.Shutdown()
		os.Exit(1)
	}
}

func initCfg(c *ucli.Context) (*cli.Config, error) {
	var (
		err error
		cfg = cli.NewDefaultConfig()
	)

	// only problems are reported, unless the log4g config says otherwise
	log4g.SetLogLevel("", log4g.WARN)
	logCfgFile := c.String(argLogCfgFile)
	if logCfgFile != "" {
		if _, err := os.Stat(logCfgFile); os.IsNotExist(err) {
			if c.IsSet(argLogCfgFile) {
				return nil, fmt.Errorf("log4g configuration file %s not found", logCfgFile)
			}
		} else if err = log4g.ConfigF(logCfgFile); err != nil {
			return nil, errors.Wrapf(err, "could not parse %s file as a log4g configuration", logCfgFile)
		}
	}

	cfgFile := c.String(argCfgFile)
	if cfgFile != "" {
		logger.Info("Loading config from=", cfgFile)
		config, err := cli.LoadCfgFromFile(cfgFile)
		if err != nil {
			return nil, err
		}
		cfg.Apply(config)
	}

	applyArgsToCfg(c, cfg)
	if err = cfg.Check(); err != nil {
		return nil, err
	}
	logger.Debug("Config ", cfg)
	return cfg, nil
}

func applyArgsToCfg(c *ucli.Context, cfg *cli.Config) {
	if c.Bool(argBackup) {
		cfg.Storage.Backup = true
	}
	if c.IsSet(argLockWaitMs) {
		cfg.Storage.LockWaitMs = c.Int(argLockWaitMs)
	}
	if ms := c.String(argMaxMsgSize); ms != "" {
		cfg.Stash.MaxMessageSize = ms
	}
	if hf := c.String(argHistoryFile); hf != "" {
		cfg.HistoryFile = hf
	}
}

func newStash(cfg *cli.Config) (*stash.Stash, error) {
	strg, err := storage.NewStorage(cfg.Storage)
	if err != nil {
		return nil, err
	}
	return stash.New(cfg.Stash, strg)
}

// args returns exactly n positional arguments, or an error
func args(c *ucli.Context, n int) ([]string, error) {
	if c.Args().Len() != n {
		return nil, fmt.Errorf("%d arguments expected, but got %d, see 'pngstash help'", n, c.Args().Len())
	}
	return c.Args().Slice(), nil
}

func runEncode(c *ucli.Context) error {
	a, err := args(c, 3)
	if err != nil {
		return err
	}
	cfg, err := initCfg(c)
	if err != nil {
		return err
	}
	s, err := newStash(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := utils.NewSignalCtx(func(sig os.Signal) {
		logger.Warn("Handling signal=", sig)
	})
	defer cancel()
	if err = s.Encode(ctx, a[0], a[1], a[2], c.String(argOutput)); err != nil {
		return err
	}
	fmt.Println("Successfully added secret message!")
	return nil
}

func runDecode(c *ucli.Context) error {
	a, err := args(c, 2)
	if err != nil {
		return err
	}
	cfg, err := initCfg(c)
	if err != nil {
		return err
	}
	s, err := newStash(cfg)
	if err != nil {
		return err
	}

	msg, err := s.Decode(a[0], a[1])
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func runRemove(c *ucli.Context) error {
	a, err := args(c, 2)
	if err != nil {
		return err
	}
	cfg, err := initCfg(c)
	if err != nil {
		return err
	}
	s, err := newStash(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := utils.NewSignalCtx(func(sig os.Signal) {
		logger.Warn("Handling signal=", sig)
	})
	defer cancel()
	ct, err := s.Remove(ctx, a[0], a[1])
	if err != nil {
		return err
	}
	fmt.Printf("Chunk %s is successfully removed!\n", ct)
	return nil
}

func runPrint(c *ucli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	cfg, err := initCfg(c)
	if err != nil {
		return err
	}
	s, err := newStash(cfg)
	if err != nil {
		return err
	}

	if !c.Bool(argPrintJson) && !c.Bool(argPrintVerbose) {
		types, err := s.Print(a[0])
		if err != nil {
			return err
		}
		fmt.Println(types)
		return nil
	}

	cis, err := s.Describe(a[0])
	if err != nil {
		return err
	}
	if c.Bool(argPrintJson) {
		cli.PrintChunksJson(os.Stdout, cis)
	} else {
		cli.PrintChunks(os.Stdout, cis)
	}
	return nil
}

func runShell(c *ucli.Context) error {
	a, err := args(c, 1)
	if err != nil {
		return err
	}
	cfg, err := initCfg(c)
	if err != nil {
		return err
	}
	return cli.Shell(cfg, a[0])
}
