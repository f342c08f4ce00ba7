package main

import (
	"github.com/alecthomas/kong"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	Config  string `help:"Config file (default: ./aiorch.toml or ~/.ai-orch/config.toml)" short:"c" type:"path"`
	Debug   bool   `help:"Enable debug logging"`
	LogFile string `help:"Write logs to this file instead of stderr" type:"path"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Chat     ChatCmd     `cmd:"" default:"withargs" help:"Interactive chat (default)"`
	Ask      AskCmd      `cmd:"" help:"Send one prompt and print the answer"`
	Models   ModelsCmd   `cmd:"" help:"List models in priority order"`
	Sessions SessionsCmd `cmd:"" help:"List saved conversations"`
	Stats    StatsCmd    `cmd:"" help:"Print per-model attempt statistics as JSON"`
	Conf     ConfigCmd   `cmd:"" name:"config" help:"Configuration file helpers"`
	Version  VersionCmd  `cmd:"" help:"Show version"`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("aiorch"),
		kong.Description("Priority-ordered multi-provider chat with automatic failover"),
		kong.UsageOnError(),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
