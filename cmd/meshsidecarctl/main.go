// Package main provides the entry point for meshsidecarctl.
//
// meshsidecarctl is the command-line operator tool for meshsidecar: it
// pushes shard topology and MySQL credentials to a running process's
// control plane, and drives status/shutdown/reload/drain over its
// local Unix management socket.
package main

import (
	"fmt"
	"os"

	"github.com/kvmesh/sidecar/cmd/meshsidecarctl/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
