// Package command provides CLI command definitions for meshsidecarctl.
package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"
)

// StatsCommand returns the stats subcommand group: the local socket's
// full status line, and a raw pull of the Prometheus metrics text
// exposition exposed over HTTP.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show process and metrics statistics",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show uptime, shard list count, DNS cache size, and drain state",
				Action: statsShow,
			},
			{
				Name:  "metrics",
				Usage: "Fetch the Prometheus metrics exposition from a given address",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "addr",
						Usage:    "metrics HTTP address, e.g. localhost:9090",
						Required: true,
					},
				},
				Action: statsMetrics,
			},
		},
	}
}

func statsShow(c *cli.Context) error {
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

func statsMetrics(c *cli.Context) error {
	addr := c.String("addr")
	httpClient := ensureHTTPFor(addr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, err := httpClient.Get(ctx, "/metrics")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read metrics body: %w", err)
	}
	fmt.Print(string(body))
	return nil
}
