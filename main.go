package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "", "path to config.yaml (default: ./config.yaml if present)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&serveCmd{}, "")
	commander.Register(&onboardCmd{}, "store")
	commander.Register(&exportCmd{}, "store")
	commander.Register(&restoreCmd{}, "store")
	commander.Register(&importCSVCmd{}, "ledger")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
