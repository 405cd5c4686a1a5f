package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

func ttlFlag() cli.Flag {
	return &cli.Int64Flag{
		Name:     "ttl",
		Aliases:  []string{"t"},
		Usage:    "Lifetime in seconds",
		Required: true,
	}
}

// CreateCommand returns the create command.
func CreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Store a payload and print its new token",
		Flags: []cli.Flag{
			ttlFlag(),
			&cli.StringFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Payload as a JSON object",
			},
			&cli.StringSliceFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Payload field as KEY=VALUE (repeatable, applied after --json)",
			},
		},
		Action: createAction,
	}
}

func createAction(c *cli.Context) error {
	payload, err := buildPayload(c.String("json"), c.StringSlice("data"))
	if err != nil {
		return err
	}

	res, err := client(c).Create(c.Context, payload, c.Int64("ttl"))
	if err != nil {
		return err
	}
	return render(c, res)
}

// buildPayload merges a JSON object with KEY=VALUE pairs.
func buildPayload(rawJSON string, pairs []string) (map[string]any, error) {
	payload := map[string]any{}
	if strings.TrimSpace(rawJSON) != "" {
		if err := json.Unmarshal([]byte(rawJSON), &payload); err != nil {
			return nil, fmt.Errorf("--json: %w", err)
		}
		if payload == nil {
			return nil, fmt.Errorf("--json: payload must be a JSON object")
		}
	}

	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--data %q: expected KEY=VALUE", kv)
		}
		payload[k] = v
	}
	return payload, nil
}

// ValidateCommand returns the validate command.
func ValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Print the payload of an active token",
		ArgsUsage: "TOKEN",
		Action: func(c *cli.Context) error {
			tok, err := tokenArg(c)
			if err != nil {
				return err
			}
			body, err := client(c).Validate(c.Context, tok)
			if err != nil {
				return err
			}
			return render(c, body)
		},
	}
}

// ExpireCommand returns the expire command.
func ExpireCommand() *cli.Command {
	return &cli.Command{
		Name:      "expire",
		Usage:     "Expire a token immediately",
		ArgsUsage: "TOKEN",
		Action: func(c *cli.Context) error {
			tok, err := tokenArg(c)
			if err != nil {
				return err
			}
			if err := client(c).Expire(c.Context, tok); err != nil {
				return err
			}
			return render(c, map[string]string{"token": tok, "status": "expired"})
		},
	}
}

// UpdateCommand returns the update command.
func UpdateCommand() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Aliases:   []string{"extend"},
		Usage:     "Set a token to expire TTL seconds from now",
		ArgsUsage: "TOKEN",
		Flags:     []cli.Flag{ttlFlag()},
		Action: func(c *cli.Context) error {
			tok, err := tokenArg(c)
			if err != nil {
				return err
			}
			res, err := client(c).Update(c.Context, tok, c.Int64("ttl"))
			if err != nil {
				return err
			}
			return render(c, res)
		},
	}
}

// GetExpiredCommand returns the get-expired command.
func GetExpiredCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-expired",
		Usage:     "Print the payload of an expired token",
		ArgsUsage: "TOKEN",
		Action: func(c *cli.Context) error {
			tok, err := tokenArg(c)
			if err != nil {
				return err
			}
			body, err := client(c).GetExpired(c.Context, tok)
			if err != nil {
				return err
			}
			return render(c, body)
		},
	}
}

// DiagnosticCommand returns the diagnostic command.
func DiagnosticCommand() *cli.Command {
	return &cli.Command{
		Name:  "diagnostic",
		Usage: "Show server process information",
		Action: func(c *cli.Context) error {
			diag, err := client(c).Diagnostic(c.Context)
			if err != nil {
				return err
			}
			return render(c, diag)
		},
	}
}
