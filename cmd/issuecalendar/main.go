package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var (
		cmd  = os.Args[1]
		args = os.Args[2:]
		err  error
	)
	switch cmd {
	case ServeCommand.Name:
		err = ServeCommand.Run(ctx, args)
	case LoginCommand.Name:
		err = LoginCommand.Run(ctx, args)
	case EncryptCommand.Name:
		err = EncryptCommand.Run(ctx, args)
	case DecryptCommand.Name:
		err = DecryptCommand.Run(ctx, args)
	case AuthURLCommand.Name:
		err = AuthURLCommand.Run(ctx, args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func usage() {
	w := os.Stderr
	fmt.Fprintf(w, "Usage of %s:\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s <command> [options]\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range [][2]string{
		{ServeCommand.Name, ServeCommand.Description},
		{LoginCommand.Name, LoginCommand.Description},
		{EncryptCommand.Name, EncryptCommand.Description},
		{DecryptCommand.Name, DecryptCommand.Description},
		{AuthURLCommand.Name, AuthURLCommand.Description},
	} {
		fmt.Fprintf(w, "  %-10s %s\n", c[0], c[1])
	}
}
