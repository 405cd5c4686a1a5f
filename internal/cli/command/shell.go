package command

import (
	"context"
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokstash-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively against one server",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not read or write ~/.tokstash/history",
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	parent := settings(c)

	historyFile := ""
	if !c.Bool("no-history") {
		historyFile = repl.DefaultHistoryFile()
	}
	history := repl.NewHistory(historyFile)
	if err := history.Load(); err != nil {
		return err
	}

	var names []string
	for _, cmd := range App().Commands {
		if cmd.Name != "shell" {
			names = append(names, cmd.Name)
		}
	}

	r := repl.New(shellExecutor(c, parent),
		repl.WithIO(c.App.Reader, c.App.Writer),
		repl.WithHistory(history),
		repl.WithCommands(names...),
	)
	if err := r.Run(c.Context); err != nil {
		return err
	}
	return history.Save()
}

// shellExecutor runs one line as a command of a fresh App sharing the
// shell's resolved settings.
func shellExecutor(c *cli.Context, parent *Settings) repl.Executor {
	return func(ctx context.Context, args []string) error {
		if args[0] == "shell" {
			return errors.New("already in a shell")
		}

		app := App()
		app.Writer = c.App.Writer
		app.ErrWriter = c.App.ErrWriter
		app.Before = func(sc *cli.Context) error {
			sc.App.Metadata[settingsKey] = parent
			return nil
		}
		return app.RunContext(ctx, append([]string{c.App.Name}, args...))
	}
}
