// Package command provides CLI command definitions for meshsidecarctl.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kvmesh/sidecar/internal/cli/connection"
	"github.com/kvmesh/sidecar/internal/cli/output"
	"github.com/kvmesh/sidecar/internal/controlplane"
)

// TopologyCommand returns the topology subcommand group. It drives
// internal/controlplane's one write path -- pushing a namespace's
// shard ranges and MySQL credential to the running process.
func TopologyCommand() *cli.Command {
	return &cli.Command{
		Name:  "topology",
		Usage: "Push shard topology and credentials to a running meshsidecar",
		Subcommands: []*cli.Command{
			{
				Name:  "push",
				Usage: "Push a namespace update from a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "path to a JSON-encoded controlplane.NamespaceUpdate",
						Required: true,
					},
				},
				Action: topologyPush,
			},
		},
	}
}

func topologyPush(c *cli.Context) error {
	path := c.String("file")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var update controlplane.NamespaceUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	client := EnsureHTTP(c)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	resp, err := client.Post(ctx, "/v1/namespaces", update)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	var result map[string]any
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}

	flags := ParseGlobalFlags(c)
	switch output.Format(flags.Output) {
	case output.FormatJSON:
		return (&output.JSONFormatter{}).Format(os.Stdout, result)
	default:
		fmt.Printf("namespace %q pushed: %v\n", update.Namespace, result["status"])
		return nil
	}
}
