package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	cgt "github.com/robinvdvleuten/cgt/cli"
)

var (
	// Version contains the application version number. It's set via ldflags
	// when building.
	Version = ""

	// CommitSHA contains the SHA of the commit that this application was built
	// against. It's set via ldflags when building.
	CommitSHA = ""

	cli struct {
		Version kong.VersionFlag `help:"Show version information"`
		cgt.Commands
	}
)

func main() {
	// CGT_* settings may live in a .env file next to the transactions.
	_ = godotenv.Load()

	cgt.Version, cgt.CommitSHA = Version, CommitSHA

	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": buildVersion(),
		},
		kong.Name("cgt"),
		kong.Description("UK capital gains tax calculator for crypto assets."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	result := cgt.Execute(ctx)
	if result.Err != nil {
		ctx.Errorf("%s", result.Err)
	}
	os.Exit(result.ExitCode)
}

func buildVersion() string {
	if Version == "" {
		Version = "dev"
	}
	if CommitSHA == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, CommitSHA)
}
