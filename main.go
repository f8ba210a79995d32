package main

import (
	"log/slog"
	"os"

	"picveil/parallel"
	"picveil/scramble"
	"picveil/sharing"

	"github.com/alecthomas/kong"
)

type CLI struct {
	LogLevel  string `help:"Log level" enum:"debug,info,warn,error" default:"info"`
	LogFormat string `help:"Log output format" enum:"text,json" default:"text"`
	Workers   int    `help:"Number of parallel workers for share files, 0 for one per CPU" default:"0"`

	Scramble scramble.CLICmd `cmd:"" help:"Scramble pixel positions with a random permutation key"`
	Sharing  sharing.CLICmd  `cmd:"" help:"Split an image into row shares and reconstruct it"`
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("picveil"),
		kong.Description("Obfuscate images by pixel permutation or row sharing."),
		kong.UsageOnError(),
	)

	slog.SetDefault(newLogger(cli.LogLevel, cli.LogFormat))
	slog.Debug("running", "command", kctx.Command(), "workers", cli.Workers)

	pool := parallel.Start(cli.Workers)
	err := kctx.Run(pool.Do, pool.Wait)
	pool.Cancel()
	kctx.FatalIfErrorf(err)
}
