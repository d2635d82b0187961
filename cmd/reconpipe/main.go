package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hamed0406/reconpipe/internal/domain"
)

const (
	exitOK          = 0
	exitConfig      = 1
	exitInput       = 2
	exitInterrupted = 130
)

var errInput = errors.New("input read error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "reconpipe",
		Short:         "Probe many targets concurrently and print what answered",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(resolveCmd(), fetchCmd(), downloadCmd())

	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	warn := color.New(color.FgHiRed)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, domain.ErrInterrupted):
		fmt.Fprintln(os.Stderr, warn.Sprint("[!] Interrupted by user. Exiting..."))
		return exitInterrupted
	case errors.Is(err, errInput):
		fmt.Fprintln(os.Stderr, warn.Sprintf("[!] %v", err))
		return exitInput
	default:
		fmt.Fprintln(os.Stderr, warn.Sprintf("[!] %v", err))
		return exitConfig
	}
}
