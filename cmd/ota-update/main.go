// ota-update drives atomic A/B image updates of the host root filesystem:
// it reads the LVM and boot-loader state, builds a deterministic command
// plan against a signed manifest, and executes it under the host-wide lock.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tiiuae/ghaf-givc/internal/ota"
	"github.com/tiiuae/ghaf-givc/internal/ota/executor"
	"github.com/tiiuae/ghaf-givc/internal/ota/group"
	"github.com/tiiuae/ghaf-givc/internal/ota/manifest"
	"github.com/tiiuae/ghaf-givc/internal/ota/plan"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: ota-update <command> [flags]

commands:
  status                          show slot groups and their classification
  install --source DIR [flags]    install the image described by DIR/manifest.json
  remove <version> [flags]        return a slot to the empty state
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	if err := run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "ota-update:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "status":
		return cmdStatus(ctx, args)
	case "install":
		return cmdInstall(ctx, args)
	case "remove":
		return cmdRemove(ctx, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func auditLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	return cfg.Build()
}

func cmdStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	boot := fs.String("boot", group.DefaultBootDir, "ESP mount point")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rt, err := group.Load(ctx, *boot)
	if err != nil {
		return err
	}
	groups, err := rt.SlotGroups()
	if err != nil {
		return err
	}
	for _, g := range groups {
		version := g.Version
		if version == "" {
			version = "(empty)"
		}
		uki := "-"
		if g.Uki != nil {
			uki = g.Uki.String()
		}
		fmt.Printf("%-10s %-18s %-8s root=%v verity=%v uki=%s\n",
			version, g.Hash, g.Classify(rt.Kernel), g.Root != nil, g.Verity != nil, uki)
	}
	return nil
}

func cmdInstall(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	source := fs.String("source", "", "directory holding the manifest and images")
	manifestName := fs.String("manifest", "manifest.json", "manifest file name within the source")
	boot := fs.String("boot", group.DefaultBootDir, "ESP mount point")
	dryRun := fs.Bool("dry-run", false, "print the plan instead of executing")
	noChecksum := fs.Bool("no-checksum", false, "skip SHA-256 verification of image files")
	lockPath := fs.String("lock", executor.DefaultLockPath, "lock file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *source == "" {
		return fmt.Errorf("install: --source required")
	}

	m, err := manifest.FromFile(manifest.FileRef{Name: *manifestName}.FullName(*source))
	if err != nil {
		return err
	}
	if err := m.Validate(*source, !*noChecksum); err != nil {
		return err
	}

	rt, err := group.Load(ctx, *boot)
	if err != nil {
		return err
	}

	if usage, err := group.SourceUsage(*source); err == nil {
		fmt.Printf("source %s: %.1f GiB free\n", *source, float64(usage.Free)/(1<<30))
	}

	p, err := plan.Install(rt, m, *source)
	if err != nil {
		return err
	}
	if p.IsEmpty() {
		fmt.Printf("version %s already installed, nothing to do\n", m.ToVersion())
		return nil
	}
	return execute(ctx, p, *dryRun, *lockPath)
}

func cmdRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	hash := fs.String("hash", "", "content hash fragment (optional)")
	boot := fs.String("boot", group.DefaultBootDir, "ESP mount point")
	dryRun := fs.Bool("dry-run", false, "print the plan instead of executing")
	lockPath := fs.String("lock", executor.DefaultLockPath, "lock file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("remove: version required")
	}

	rt, err := group.Load(ctx, *boot)
	if err != nil {
		return err
	}
	p, err := plan.Remove(rt, ota.Version{Revision: fs.Arg(0), Hash: *hash})
	if err != nil {
		return err
	}
	if p.IsEmpty() {
		return nil
	}
	return execute(ctx, p, *dryRun, *lockPath)
}

func execute(ctx context.Context, p plan.Plan, dryRun bool, lockPath string) error {
	if dryRun {
		return executor.RunPlan(ctx, executor.DryRun{Out: os.Stdout}, p)
	}

	lock, err := executor.AcquireLock(lockPath)
	if err != nil {
		return err
	}
	defer lock.Release()

	log, err := auditLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	return executor.RunPlan(ctx, executor.NewShell(log), p)
}
