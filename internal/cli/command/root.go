package command

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokstash-go/internal/cli/config"
	"github.com/yndnr/tokstash-go/internal/cli/connection"
	"github.com/yndnr/tokstash-go/internal/cli/output"
	"github.com/yndnr/tokstash-go/internal/infra/buildinfo"
	"github.com/yndnr/tokstash-go/internal/infra/tlsroots"
)

const settingsKey = "settings"

// Settings are the resolved connection and output options.
type Settings struct {
	Server  string
	Output  output.Format
	Timeout time.Duration

	// TLS is set for https servers.
	TLS *tls.Config
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "tokstash-cli",
		Usage:    "tokstash command-line client",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Before:   resolveSettings,
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			CreateCommand(),
			ValidateCommand(),
			ExpireCommand(),
			UpdateCommand(),
			GetExpiredCommand(),
			DiagnosticCommand(),
			ShellCommand(),
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file (default ~/.tokstash/cli.yaml)",
			EnvVars: []string{"TOKSTASH_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "tokstash server address (e.g., 127.0.0.1:5080)",
			EnvVars: []string{"TOKSTASH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			EnvVars: []string{"TOKSTASH_OUTPUT"},
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
		},
		&cli.StringFlag{
			Name:    "ca-file",
			Usage:   "PEM file of additional trusted CA certificates",
			EnvVars: []string{"TOKSTASH_CA_FILE"},
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "Skip server certificate verification",
		},
	}
}

// resolveSettings layers flags and environment over the config file.
func resolveSettings(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	if c.IsSet("server") {
		cfg.Server = c.String("server")
	}
	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("ca-file") {
		cfg.CAFile = c.String("ca-file")
	}
	if c.IsSet("insecure") {
		cfg.Insecure = c.Bool("insecure")
	}

	format, err := output.ParseFormat(cfg.Output)
	if err != nil {
		return err
	}

	var tlsConfig *tls.Config
	if strings.HasPrefix(cfg.Server, "https://") {
		tlsConfig, err = tlsroots.ClientConfig(cfg.CAFile, cfg.Insecure)
		if err != nil {
			return err
		}
	}

	c.App.Metadata[settingsKey] = &Settings{
		Server:  cfg.Server,
		Output:  format,
		Timeout: cfg.Timeout,
		TLS:     tlsConfig,
	}
	return nil
}

func settings(c *cli.Context) *Settings {
	if s, ok := c.App.Metadata[settingsKey].(*Settings); ok {
		return s
	}
	d := config.Default()
	return &Settings{Server: d.Server, Output: output.FormatTable, Timeout: d.Timeout}
}

func client(c *cli.Context) *connection.HTTPClient {
	s := settings(c)
	return connection.NewHTTPClient(s.Server, s.Timeout).WithTLS(s.TLS)
}

func render(c *cli.Context, data any) error {
	return output.NewFormatter(settings(c).Output).Format(c.App.Writer, data)
}

// tokenArg returns the single TOKEN argument.
func tokenArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one TOKEN argument", c.Command.Name)
	}
	return c.Args().First(), nil
}
