package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/guilherme-santos/issuecalendar/internal"
)

var LoginCommand = _loginCommand{
	Name:        "login",
	Description: "Authorize a Google calendar locally and print the encrypted gcal_token",
}

type _loginCommand struct {
	Name        string
	Description string
}

func (s _loginCommand) Run(ctx context.Context, args []string) error {
	var addr string
	r, _, err := loadRuntime(s.Name, args, func(fs *pflag.FlagSet) {
		fs.StringVar(&addr, "addr", "localhost:8085", "address for the local OAuth callback")
	})
	if err != nil {
		return err
	}
	logger := internal.NewLogger(os.Stderr, r.Verbose)

	v, err := newVault(r)
	if err != nil {
		return err
	}
	googleCal, err := newGoogleClient(r, logger)
	if err != nil {
		return err
	}

	tok, err := googleCal.Login(ctx, addr, func(authURL string) {
		fmt.Fprintf(os.Stderr, "Go to the following link in your browser\n%s\n", authURL)
	})
	if err != nil {
		return fmt.Errorf("google: logging in: %w", err)
	}
	ciphertext, err := v.EncryptJSON(tok)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Use this value as gcal_token in .github/calendar.yml:")
	fmt.Println(ciphertext)
	return nil
}
