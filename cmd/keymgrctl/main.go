// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command keymgrctl manages the addresses of an HD wallet account and builds
// and signs transactions spending from it. Keys, addresses and their used
// flags are kept in a key cache inside the data directory.
package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"
)

var newlineBytes = []byte{'\n'}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Stderr.Write(newlineBytes)
	_ = logWriter.Close()
	os.Exit(1)
}

// run parses the configuration and executes the selected command.
func run(args []string) error {
	cfg := defaultConfig()
	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	if err := addCommands(parser, cfg); err != nil {
		return err
	}

	if err := loadConfigFile(parser, args); err != nil {
		return err
	}

	_, err := parser.ParseArgs(args)
	return err
}

func main() {
	err := run(os.Args[1:])
	if usageError(err) {
		fmt.Println(err)
		return
	}
	if err != nil {
		fatalf("%v", err)
	}

	if err := logWriter.Close(); err != nil {
		fatalf("Unable to close log: %v", err)
	}
}
