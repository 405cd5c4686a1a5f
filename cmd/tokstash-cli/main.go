package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/yndnr/tokstash-go/internal/cli/command"
	"github.com/yndnr/tokstash-go/internal/cli/connection"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, connection.ErrInvalidToken) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
