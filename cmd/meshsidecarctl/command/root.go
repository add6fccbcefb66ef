// Package command provides CLI command definitions for meshsidecarctl.
//
// It uses urfave/cli/v2 for command parsing. Every command talks to a
// running meshsidecar process over one of its two management surfaces:
// the control-plane HTTP endpoint (topology/credential pushes) or the
// local Unix-socket management server (status and lifecycle verbs).
package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	clicfg "github.com/kvmesh/sidecar/internal/cli/config"
	"github.com/kvmesh/sidecar/internal/cli/connection"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "meshsidecarctl",
		Usage:   "meshsidecar operator command-line tool",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			TopologyCommand(),
			DNSCommand(),
			StatsCommand(),
			LocalCommand(),
		},
		Before: func(c *cli.Context) error {
			mgr := connection.NewManager()
			c.App.Metadata["connMgr"] = mgr
			c.App.Metadata["resolved"] = resolveGlobalFlags(c, mgr)
			return nil
		},
	}
}

// resolveGlobalFlags layers the saved CLI config's profile (--profile)
// under the explicit --control-plane/--socket/--output flags, then
// records the resolved target on mgr so later commands can see what's
// "connected".
func resolveGlobalFlags(c *cli.Context, mgr *connection.Manager) *GlobalFlags {
	flags := &GlobalFlags{
		ControlPlane: c.String("control-plane"),
		Socket:       c.String("socket"),
		Output:       c.String("output"),
	}

	profile := c.String("profile")
	if profile == "" {
		return flags
	}

	cfg, err := clicfg.Load(c.String("config-file"))
	if err != nil {
		return flags
	}
	conn, ok := cfg.Connections[profile]
	if !ok {
		return flags
	}
	if !c.IsSet("control-plane") && conn.ControlPlane != "" {
		flags.ControlPlane = conn.ControlPlane
	}
	if !c.IsSet("socket") && conn.Socket != "" {
		flags.Socket = conn.Socket
	}
	mgr.Connect(&connection.Connection{Name: profile, Server: flags.ControlPlane})
	return flags
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "control-plane",
			Aliases: []string{"c"},
			Usage:   "control-plane HTTP address (e.g., localhost:7070)",
			EnvVars: []string{"MESHSIDECAR_CONTROL_PLANE"},
			Value:   "localhost:7070",
		},
		&cli.StringFlag{
			Name:    "socket",
			Aliases: []string{"s"},
			Usage:   "local management socket path",
			EnvVars: []string{"MESHSIDECAR_SOCKET"},
			Value:   "/var/run/meshsidecar/meshsidecar.sock",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "named connection from the CLI config file to use as defaults",
		},
		&cli.StringFlag{
			Name:  "config-file",
			Usage: "path to the CLI config file (default ~/.meshsidecarctl/cli.yaml)",
		},
	}
}

// GlobalFlags holds the flags every subcommand reads.
type GlobalFlags struct {
	ControlPlane string
	Socket       string
	Output       string
}

// ParseGlobalFlags extracts global flags from context, preferring the
// profile-resolved values the Before hook computed over re-deriving
// them from the raw flag set.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	if resolved, ok := c.App.Metadata["resolved"].(*GlobalFlags); ok {
		return resolved
	}
	return &GlobalFlags{
		ControlPlane: c.String("control-plane"),
		Socket:       c.String("socket"),
		Output:       c.String("output"),
	}
}

// EnsureHTTP builds an HTTP client against the control-plane address.
// meshsidecar's control-plane endpoint does not gate namespace pushes
// behind API keys the way the teacher's admin API does, so no
// credentials are threaded through here.
func EnsureHTTP(c *cli.Context) *connection.HTTPClient {
	flags := ParseGlobalFlags(c)
	return connection.NewHTTPClient(flags.ControlPlane, "", "")
}

// ensureHTTPFor builds an HTTP client against an arbitrary address,
// for surfaces other than the control plane (e.g. the metrics
// listener) that don't have a dedicated global flag.
func ensureHTTPFor(addr string) *connection.HTTPClient {
	return connection.NewHTTPClient(addr, "", "")
}

// EnsureSocket dials the local management socket.
func EnsureSocket(c *cli.Context) (*connection.SocketClient, error) {
	flags := ParseGlobalFlags(c)
	client := connection.NewSocketClient(flags.Socket)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", flags.Socket, err)
	}
	return client, nil
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
