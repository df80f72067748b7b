package cli

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Config    string `help:"Configuration file (YAML)." env:"CGT_CONFIG" type:"path" short:"c"`
	Telemetry bool   `help:"Show timing telemetry for operations."`
	Debug     bool   `help:"Enable debug logging." env:"CGT_DEBUG"`
	LogFormat string `help:"Log format (${enum})." enum:"text,json" default:"text" env:"CGT_LOG_FORMAT"`
}

// Inputs are the transaction files a command reads.
type Inputs struct {
	Files       []string `help:"Transaction files (CSV or YAML); use '-' or omit to read stdin." arg:"" optional:""`
	InputFormat string   `help:"Format of data read from stdin (${enum})." enum:"csv,yaml" default:"csv"`
	NoIncludes  bool     `help:"Do not follow include lists in YAML files."`
}

type Commands struct {
	Globals

	Report   ReportCmd   `cmd:"" help:"Report capital gains and income per tax year."`
	Holdings HoldingsCmd `cmd:"" help:"Show the Section 104 pools and their market value."`
	Audit    AuditCmd    `cmd:"" help:"Show the pooled buys and sells after matching."`
	Doctor   DoctorCmd   `cmd:"" help:"Doctor utilities for debugging transaction files."`
	Serve    ServeCmd    `cmd:"" help:"Start a web server."`
}
