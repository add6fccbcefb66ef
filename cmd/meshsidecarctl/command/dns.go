// Package command provides CLI command definitions for meshsidecarctl.
package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// DNSCommand returns the dns subcommand group. The local management
// socket's "status" line carries the DNS cache's resolved-host count
// alongside the rest of the process summary -- there is no separate
// DNS-only wire command, so this just calls out that one field.
func DNSCommand() *cli.Command {
	return &cli.Command{
		Name:  "dns",
		Usage: "Inspect the backend-host DNS cache",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show resolved host count and cache freshness",
				Action: dnsStatus,
			},
		},
	}
}

func dnsStatus(c *cli.Context) error {
	client, err := EnsureSocket(c)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Execute("status")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	fmt.Print(resp)
	return nil
}
