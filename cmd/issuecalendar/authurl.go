package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/guilherme-santos/issuecalendar/internal"
)

var AuthURLCommand = _authURLCommand{
	Name:        "authurl",
	Description: "Print the Google consent page URL used during onboarding",
}

type _authURLCommand struct {
	Name        string
	Description string
}

func (s _authURLCommand) Run(ctx context.Context, args []string) error {
	var state string
	r, _, err := loadRuntime(s.Name, args, func(fs *pflag.FlagSet) {
		fs.StringVar(&state, "state", "issuecalendar", "OAuth state value")
	})
	if err != nil {
		return err
	}
	googleCal, err := newGoogleClient(r, internal.NewLogger(os.Stderr, r.Verbose))
	if err != nil {
		return err
	}
	fmt.Println(googleCal.AuthURL(state))
	return nil
}
