package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/sajdwp/internal/cli"
	"github.com/orizon-lang/sajdwp/internal/config"
	"github.com/orizon-lang/sajdwp/internal/debug/jdwp"
	"github.com/orizon-lang/sajdwp/internal/debug/transport"
	"github.com/orizon-lang/sajdwp/internal/launch"
)

var log = commonlog.GetLogger("sajdwp")

func main() {
	var (
		configPath  string
		addr        string
		snapPath    string
		format      string
		mmap        bool
		wait        bool
		vmStart     bool
		verbosity   int
		logFile     string
		showVersion bool
		jsonOutput  bool
	)
	flag.StringVar(&configPath, "config", "", "path to "+config.FileName+" (default: ./"+config.FileName+" if present)")
	flag.StringVar(&addr, "addr", "", "listen address for JDWP (tcp)")
	flag.StringVar(&snapPath, "snapshot", "", "path to the target snapshot")
	flag.StringVar(&format, "format", "", "snapshot encoding: auto, json or cbor")
	flag.BoolVar(&mmap, "mmap", false, "map the snapshot file instead of reading it")
	flag.BoolVar(&wait, "wait", false, "wait for the snapshot file to appear")
	flag.BoolVar(&vmStart, "vm-start-event", false, "send a VM_START event on attach")
	flag.IntVar(&verbosity, "v", 1, "log verbosity: 0 notice, 1 info, 2 debug")
	flag.StringVar(&logFile, "log", "", "log file (default stderr)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&jsonOutput, "json", false, "print version information as JSON")
	flag.Parse()

	if showVersion {
		cli.PrintVersion("sa-jdwp", jsonOutput)
		return
	}

	path, required := configPath, configPath != ""
	if path == "" {
		path = config.FileName
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		cli.ExitWithError("%v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Address = addr
		case "snapshot":
			cfg.Snapshot.Path = snapPath
		case "format":
			cfg.Snapshot.Format = format
		case "mmap":
			cfg.Snapshot.Mmap = mmap
		case "wait":
			cfg.Snapshot.Wait = wait
		case "vm-start-event":
			cfg.Server.VMStartEvent = vmStart
		case "v":
			cfg.Log.Verbosity = verbosity
		case "log":
			cfg.Log.File = logFile
		}
	})
	if err := cfg.Validate(); err != nil {
		cli.ExitWithCode(2, "invalid configuration: %v", err)
	}
	if flag.NArg() > 0 && cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = flag.Arg(0)
	}
	if cfg.Snapshot.Path == "" {
		cli.ExitWithCode(2, "a snapshot path is required (--snapshot or [snapshot] path)")
	}
	cli.SetupLogging(cfg.Log.Verbosity, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		cli.ExitWithError("%v", err)
	}
}

// run serves one debugger session on the configured snapshot.
func run(ctx context.Context, cfg *config.Config) error {
	vm, err := launch.Open(ctx, cfg.Snapshot.Path, cfg.Snapshot.Wait, cfg.SnapshotOptions())
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer vm.Dispose()

	ln, err := transport.Listen(ctx, cfg.Server.Address, cfg.Server.HandshakeTimeout)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer ln.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	vm.StartSweeper(gctx, cfg.Cache.SweepInterval)

	g.Go(func() error {
		defer cancel()
		conn, err := ln.Accept(gctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		log.Infof("session %s serving %s", vm.Session(), conn.RemoteAddr())
		srv := jdwp.NewServer(vm, jdwp.Options{VMStartEvent: cfg.Server.VMStartEvent})
		return srv.Serve(gctx, conn)
	})
	g.Go(func() error {
		<-gctx.Done()
		if !vm.IsDisposed() {
			log.Notice("shutting down")
		}
		_ = ln.Close()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
