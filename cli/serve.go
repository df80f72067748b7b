package cli

import (
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/cgt/web"
)

type ServeCmd struct {
	Files []string `help:"Transaction files (CSV or YAML) to serve." arg:""`
	Port  int      `help:"Port to listen on." default:"8080"`
	Watch bool     `help:"Recalculate when an input file changes." short:"w"`
}

func (cmd *ServeCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := newSession(ctx, globals, "serve")
	if err != nil {
		return err
	}
	defer s.finish()

	version := Version
	if version == "" {
		version = "dev"
	}
	commitSHA := CommitSHA
	if commitSHA == "" {
		commitSHA = "local"
	}

	server := web.NewWithVersion(cmd.Port, s.cfg, version, commitSHA, cmd.Files...)
	server.WatchEnabled = cmd.Watch

	printInfof(ctx.Stdout, "Starting server on %s:%d", server.Host, cmd.Port)
	for _, file := range cmd.Files {
		printInfof(ctx.Stdout, "Serving transactions: %s", pathStyle.Render(file))
	}
	if cmd.Watch {
		printInfof(ctx.Stdout, "Watching input files for changes")
	}

	runCtx, stop := signal.NotifyContext(s.ctx, os.Interrupt)
	defer stop()

	if err := server.Start(runCtx); err != nil {
		return err
	}
	printSuccess(ctx.Stdout, "Server stopped")
	return nil
}
