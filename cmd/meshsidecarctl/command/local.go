// Package command provides CLI command definitions for meshsidecarctl.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// LocalCommand returns the local subcommand group: the three lifecycle
// verbs internal/server/localserver.Handler accepts over the Unix
// management socket.
func LocalCommand() *cli.Command {
	return &cli.Command{
		Name:  "local",
		Usage: "Control a running meshsidecar process over its local management socket",
		Subcommands: []*cli.Command{
			{
				Name:   "shutdown",
				Usage:  "Trigger graceful shutdown",
				Action: localCommand("shutdown"),
			},
			{
				Name:   "reload",
				Usage:  "Reload on-disk configuration",
				Action: localCommand("reload"),
			},
			{
				Name:   "drain",
				Usage:  "Stop admitting new connections on every protocol listener",
				Action: localCommand("drain"),
			},
		},
	}
}

func localCommand(cmd string) cli.ActionFunc {
	return func(c *cli.Context) error {
		client, err := EnsureSocket(c)
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Execute(cmd)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Print(resp)
		return nil
	}
}
