// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Environment variables checked for secrets before prompting.
const (
	seedEnvVar       = "KEYMGR_SEED"
	passphraseEnvVar = "KEYMGR_PASSPHRASE"
)

// readSeed returns the wallet seed.
func readSeed() (string, error) {
	return readSecret(
		seedEnvVar, "Enter the wallet seed (mnemonic or base64): ",
	)
}

// readPassphrase returns the passphrase sealing the cached private keys.
func readPassphrase() (string, error) {
	return readSecret(
		passphraseEnvVar, "Enter the key cache passphrase: ",
	)
}

// readSecret returns a secret from the environment, from the terminal without
// echo, or from the next line of standard input.
func readSecret(envVar, prompt string) (string, error) {
	if secret := strings.TrimSpace(os.Getenv(envVar)); secret != "" {
		return secret, nil
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return checkSecret(string(b))
	}

	return readSecretLine(stdin)
}

// stdin is shared by every secret read so buffered input is not lost between
// reads.
var stdin = bufio.NewReader(os.Stdin)

// readSecretLine reads a secret from the next line of r.
func readSecretLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return checkSecret(line)
}

func checkSecret(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errors.New("no secret provided")
	}
	return secret, nil
}
