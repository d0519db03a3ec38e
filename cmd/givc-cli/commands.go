package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tiiuae/ghaf-givc/internal/adminclient"
	"github.com/tiiuae/ghaf-givc/internal/policy"
	"github.com/tiiuae/ghaf-givc/internal/registry"
	"github.com/tiiuae/ghaf-givc/internal/resilience"
	"github.com/tiiuae/ghaf-givc/internal/rpcapi"
	"github.com/tiiuae/ghaf-givc/internal/units"
)

func cmdStart(ctx context.Context, g globalFlags, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("start: expected app, vm or service")
	}
	kind, rest := args[0], args[1:]

	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()

	switch kind {
	case "app":
		fs := flag.NewFlagSet("start app", flag.ContinueOnError)
		vm := fs.String("vm", "", "target VM (defaults to the app name)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() == 0 {
			return fmt.Errorf("start app: application name required")
		}
		name, err := client.StartApp(ctx, rpcapi.ApplicationRequest{
			AppName: fs.Arg(0),
			VMName:  *vm,
			Args:    fs.Args()[1:],
		})
		if err != nil {
			return err
		}
		fmt.Println(name)
		return nil

	case "vm":
		if len(rest) != 1 {
			return fmt.Errorf("start vm: VM name required")
		}
		return client.StartVM(ctx, rest[0])

	case "service":
		fs := flag.NewFlagSet("start service", flag.ContinueOnError)
		vm := fs.String("vm", "", "VM hosting the service")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 || *vm == "" {
			return fmt.Errorf("start service: service name and --vm required")
		}
		return client.StartService(ctx, fs.Arg(0), *vm)

	default:
		return fmt.Errorf("start: unknown kind %q", kind)
	}
}

func cmdAppLifecycle(ctx context.Context, g globalFlags, verb string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%s: application name required", verb)
	}
	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()

	switch verb {
	case "stop":
		return client.Stop(ctx, args[0])
	case "pause":
		return client.Pause(ctx, args[0])
	case "resume":
		return client.Resume(ctx, args[0])
	}
	return nil
}

func cmdPower(ctx context.Context, g globalFlags, verb string) error {
	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()

	switch verb {
	case "poweroff":
		return client.Poweroff(ctx)
	case "reboot":
		return client.Reboot(ctx)
	case "suspend":
		return client.Suspend(ctx)
	case "wakeup":
		return client.Wakeup(ctx)
	}
	return nil
}

func cmdQuery(ctx context.Context, g globalFlags, args []string) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	byType := fs.Int("by-type", -1, "filter by unit type code")
	byName := fs.String("by-name", "", "filter by name prefix")
	asJSON := fs.Bool("as-json", false, "JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := rpcapi.QueryListRequest{NamePrefix: *byName}
	if *byType >= 0 {
		t, err := units.Decode(uint32(*byType))
		if err != nil {
			return err
		}
		req.Type = t
		req.HasType = true
	}

	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()

	list, err := client.QueryList(ctx, req)
	if err != nil {
		return err
	}
	return printUnits(os.Stdout, list, *asJSON)
}

func printUnits(w io.Writer, list []registry.QueryResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}
	for _, u := range list {
		fmt.Fprintf(w, "%-40s %-12s %-10s %s\n", u.Name, u.Type, u.Status.ActiveState, u.Placement)
	}
	return nil
}

func cmdGetStatus(ctx context.Context, g globalFlags, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("get-status: VM and unit name required")
	}
	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()

	status, err := client.GetUnitStatus(ctx, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("%s: load=%s active=%s sub=%s freezer=%s\n",
		status.Name, status.LoadState, status.ActiveState, status.SubState, status.FreezerState)
	return nil
}

func cmdSetLocale(ctx context.Context, g globalFlags, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("set-locale: locale value required")
	}
	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.SetLocale(ctx, args[0])
}

func cmdSetTimezone(ctx context.Context, g globalFlags, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("set-timezone: timezone value required")
	}
	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.SetTimezone(ctx, args[0])
}

func cmdGetStats(ctx context.Context, g globalFlags, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("get-stats: VM name required")
	}
	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()

	stats, err := client.GetStats(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("cpu: %.1f%%\nmemory: %d / %d MiB\nload1: %.2f\nuptime: %s\n",
		stats.CPUPercent,
		stats.MemoryUsed/1024/1024, stats.MemoryTotal/1024/1024,
		stats.LoadAverage1,
		(time.Duration(stats.UptimeSeconds) * time.Second).String())
	return nil
}

func cmdWatch(ctx context.Context, g globalFlags, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	initial := fs.Bool("initial", false, "print the initial snapshot")
	limit := fs.Int("limit", 0, "stop after N events (0 = forever)")
	asJSON := fs.Bool("as-json", false, "JSON output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()

	stream, err := client.Watch(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	seen := 0
	for {
		item, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if item.Initial != nil {
			if *initial {
				if err := printUnits(os.Stdout, item.Initial, *asJSON); err != nil {
					return err
				}
			}
			continue
		}
		if item.Event == nil {
			continue
		}

		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			if err := enc.Encode(item.Event); err != nil {
				return err
			}
		} else {
			fmt.Printf("%-20s %-40s active=%s\n",
				item.Event.Kind, item.Event.Result.Name, item.Event.Result.Status.ActiveState)
		}

		seen++
		if *limit > 0 && seen >= *limit {
			return nil
		}
	}
}

// policySource is the policy/update backend the CLI compiles against; the
// monitors themselves live outside this module.
var policySource policy.Source = policy.Unconfigured{}

func cmdUpdate(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("update: expected query, list or cachix")
	}
	switch args[0] {
	case "query":
		entry, err := policySource.UpdateQuery(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) %s\n", entry.Version, entry.Channel, entry.URL)
		return nil
	case "list":
		entries, err := policySource.UpdateList(ctx)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s (%s) %s\n", e.Version, e.Channel, e.URL)
		}
		return nil
	case "cachix":
		if len(args) != 2 {
			return fmt.Errorf("update cachix: pin name required")
		}
		path, err := policySource.CachixPin(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	default:
		return fmt.Errorf("update: unknown subcommand %q", args[0])
	}
}

func cmdPolicyQuery(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("policy-query: query and optional path required")
	}
	path := ""
	if len(args) == 2 {
		path = args[1]
	}
	result, err := policySource.PolicyQuery(ctx, args[0], path)
	if err != nil {
		return err
	}
	fmt.Println(result)
	return nil
}

func cmdTest(ctx context.Context, g globalFlags, args []string) error {
	if len(args) == 0 || args[0] != "ensure" {
		return fmt.Errorf("test: expected ensure")
	}
	fs := flag.NewFlagSet("test ensure", flag.ContinueOnError)
	retries := fs.Int("retry", 10, "number of attempts")
	typeCode := fs.Int("type", -1, "expected unit type code")
	vm := fs.String("vm", "", "expected VM name")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("test ensure: service name required")
	}
	service := fs.Arg(0)

	client, err := connect(ctx, g)
	if err != nil {
		return err
	}
	defer client.Close()

	backoff := resilience.Backoff{Attempts: *retries, Base: time.Second, Cap: 5 * time.Second}
	return backoff.Retry(ctx, func() error {
		return ensureUnit(ctx, client, service, *typeCode, *vm)
	})
}

func ensureUnit(ctx context.Context, client *adminclient.Client, service string, typeCode int, vm string) error {
	list, err := client.QueryList(ctx, rpcapi.QueryListRequest{NamePrefix: service})
	if err != nil {
		return err
	}
	for _, u := range list {
		if u.Name != service {
			continue
		}
		if typeCode >= 0 {
			want, err := units.Decode(uint32(typeCode))
			if err != nil {
				return err
			}
			if u.Type != want {
				return fmt.Errorf("unit %s has type %s, want %s", service, u.Type, want)
			}
		}
		if vm != "" && u.Placement.VM != vm {
			return fmt.Errorf("unit %s placed on %q, want %q", service, u.Placement.VM, vm)
		}
		if !u.Status.IsRunning() {
			return fmt.Errorf("unit %s not running (active=%s sub=%s)",
				service, u.Status.ActiveState, u.Status.SubState)
		}
		return nil
	}
	return fmt.Errorf("unit %s not registered", service)
}
