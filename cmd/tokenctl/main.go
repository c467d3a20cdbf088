package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tokenctlcmd "github.com/telekom/tokenctl/pkg/tokenctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := tokenctlcmd.DefaultConfig()
	cfg.Context = ctx
	root := tokenctlcmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
