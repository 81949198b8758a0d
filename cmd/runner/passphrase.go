package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/term"
)

var errEmptyPassphrase = errors.New("passphrase cannot be empty")

// readPassphrase prompts on a terminal, otherwise takes the first line piped to
// in. The returned enclave owns the only copy.
func readPassphrase(in *os.File, prompt io.Writer) (*memguard.Enclave, error) {
	fd := int(in.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "keystore passphrase: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return nil, err
		}
		return sealPassphrase(b)
	}
	return readPipedPassphrase(in)
}

func readPipedPassphrase(in io.Reader) (*memguard.Enclave, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return sealPassphrase([]byte(strings.TrimRight(line, "\r\n")))
}

// sealPassphrase moves b into an enclave and wipes b.
func sealPassphrase(b []byte) (*memguard.Enclave, error) {
	if len(b) == 0 {
		return nil, errEmptyPassphrase
	}
	return memguard.NewEnclave(b), nil
}
