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

// readPassword is swapped out in tests.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func promptLine(r io.Reader, w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt+": ")
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword()
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// credentials fills in whatever the flags left out by prompting.
func credentials(cmdIn io.Reader, w io.Writer, username string) (string, string, error) {
	var err error
	if username == "" {
		if username, err = promptLine(cmdIn, w, "Username"); err != nil {
			return "", "", err
		}
	}
	if username == "" {
		return "", "", errors.New("username is required")
	}
	password, err := promptPassword(w)
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	return username, password, nil
}
