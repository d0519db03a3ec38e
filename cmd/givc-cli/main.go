// givc-cli is the operator's thin client onto the admin service: unit
// lifecycle, queries, locale/timezone distribution, the watch stream and the
// update/policy lookups.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tiiuae/ghaf-givc/internal/adminclient"
	"github.com/tiiuae/ghaf-givc/internal/obs/config"
	"github.com/tiiuae/ghaf-givc/internal/transport"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: givc-cli [flags] <command> [args]

commands:
  start {app|vm|service} ...   start an application, VM or service
  stop|pause|resume <app>      application lifecycle
  reboot|poweroff|suspend      host power control
  wakeup                       reserved
  query [--by-type N] [--by-name N] [--as-json]
  query-list                   full registry snapshot
  get-status <vm> <unit>       status of one unit
  set-locale <locale>          distribute a locale
  set-timezone <tz>            distribute a timezone
  get-stats <vm>               VM resource statistics ("host" for the host)
  watch [--initial] [--limit N] [--as-json]
  update {query|list|cachix}   update channel lookups
  policy-query <query> [path]  evaluate a policy query
  test ensure [flags] <service>
`)
	flag.PrintDefaults()
}

type globalFlags struct {
	addr   string
	port   int
	name   string
	vsock  bool
	cacert string
	cert   string
	key    string
	notls  bool
}

func (g globalFlags) endpoint() (transport.EndpointConfig, error) {
	var cfg transport.EndpointConfig
	if g.vsock {
		cfg.Address = transport.Vsock(2, uint32(g.port))
	} else {
		cfg.Address = transport.TCP(g.addr, uint16(g.port))
	}
	if !g.notls {
		tlsCfg, err := transport.LoadTLSConfig(g.cert, g.key, g.cacert)
		if err != nil {
			return cfg, err
		}
		cfg.TLS = tlsCfg
		cfg.TLSName = g.name
	}
	return cfg, nil
}

func main() {
	env := config.FromEnv()
	var g globalFlags
	flag.StringVar(&g.addr, "addr", env.Addr, "admin address")
	flag.IntVar(&g.port, "port", env.Port, "admin port")
	flag.StringVar(&g.name, "name", env.Name, "admin TLS name")
	flag.BoolVar(&g.vsock, "vsock", env.Vsock, "connect over vsock")
	flag.StringVar(&g.cacert, "cacert", env.CACertPath, "CA certificate path")
	flag.StringVar(&g.cert, "cert", env.CertPath, "client certificate path")
	flag.StringVar(&g.key, "key", env.KeyPath, "client key path")
	flag.BoolVar(&g.notls, "notls", env.NoTLS, "disable TLS")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	if err := dispatch(context.Background(), g, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, "givc-cli:", err)
		os.Exit(1)
	}
}

func connect(ctx context.Context, g globalFlags) (*adminclient.Client, error) {
	cfg, err := g.endpoint()
	if err != nil {
		return nil, err
	}
	return adminclient.Dial(ctx, cfg)
}

func dispatch(ctx context.Context, g globalFlags, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "start":
		return cmdStart(ctx, g, rest)
	case "stop", "pause", "resume":
		return cmdAppLifecycle(ctx, g, cmd, rest)
	case "poweroff", "reboot", "suspend", "wakeup":
		return cmdPower(ctx, g, cmd)
	case "query":
		return cmdQuery(ctx, g, rest)
	case "query-list":
		return cmdQuery(ctx, g, nil)
	case "get-status":
		return cmdGetStatus(ctx, g, rest)
	case "set-locale":
		return cmdSetLocale(ctx, g, rest)
	case "set-timezone":
		return cmdSetTimezone(ctx, g, rest)
	case "get-stats":
		return cmdGetStats(ctx, g, rest)
	case "watch":
		return cmdWatch(ctx, g, rest)
	case "update":
		return cmdUpdate(ctx, rest)
	case "policy-query":
		return cmdPolicyQuery(ctx, rest)
	case "test":
		return cmdTest(ctx, g, rest)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}
