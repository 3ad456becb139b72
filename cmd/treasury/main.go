package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the settlement server"`
	Chain   ChainCmd         `cmd:"" help:"Generate a commit-reveal hash chain"`
	Monitor MonitorCmd       `cmd:"" help:"Watch live settlement statistics"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("treasury"),
		kong.Description("Multi-game wagering settlement server with a commit-reveal oracle"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
