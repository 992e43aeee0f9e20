// Command entropyd aggregates entropy from one or more hardware random
// number generators into a single pool, quality-tests every contribution,
// and serves it to the kernel CSPRNG, to file descriptors, and to clients
// of its control protocol.
//
// Usage:
//
//	entropyd [flags]
//
// Flags:
//
//	-config string
//	    Path to the TOML configuration file (default "/etc/entropyd/entropyd.toml")
//	-uid int
//	    UID to drop privileges to after binding sockets (default: current user)
//	-gid int
//	    GID to drop privileges to after binding sockets (default: current group)
//	-verbose
//	    Run with debug-level logging regardless of the config file's log_level
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"entropyd/internal/audit"
	"entropyd/internal/config"
	"entropyd/internal/control"
	"entropyd/internal/dbusnotify"
	"entropyd/internal/entropyerr"
	"entropyd/internal/feeder"
	"entropyd/internal/group"
	"entropyd/internal/healthwatch"
	"entropyd/internal/logging"
	"entropyd/internal/poolbuf"
	"entropyd/internal/source"
)

var (
	configPath = flag.String("config", defaultConfigPath(), "Path to the TOML configuration file")
	dropUID    = flag.Int("uid", os.Getuid(), "UID to drop privileges to")
	dropGID    = flag.Int("gid", os.Getgid(), "GID to drop privileges to")
	verbose    = flag.Bool("verbose", false, "Enable debug-level logging")
)

// printfLogger adapts a printf-style callback (the shape internal/source,
// internal/feeder and internal/control expect for their SetLogger hooks)
// onto a structured logger.
func printfLogger(l *logging.Logger, level logging.Level) func(format string, args ...any) {
	return func(format string, args ...any) {
		l.Log(context.Background(), level, fmt.Sprintf(format, args...))
	}
}

func defaultConfigPath() string {
	if p := os.Getenv("ENTROPYD_CONFIG"); p != "" {
		return p
	}
	return "/etc/entropyd/entropyd.toml"
}

func main() {
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "entropyd: %v\n", entropyerr.Config("load", err))
		os.Exit(1)
	}
	if err := cfg.ValidateSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "entropyd: %v\n", entropyerr.Config("validate", err))
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	if *verbose {
		level = logging.LevelDebug
	}
	format := logging.FormatText
	if cfg.LogFormat == "json" {
		format = logging.FormatJSON
	}
	log, err := logging.New(&logging.Config{Level: level, Format: format, Output: "stderr", Component: "entropyd"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "entropyd: init logging: %v\n", err)
		os.Exit(1)
	}

	log.Info("starting", "config", *configPath, "pool_size_bytes", cfg.PoolSizeBytes)

	auditLog, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		log.Error("open audit log", "error", err)
		os.Exit(1)
	}
	defer auditLog.Close()
	auditLog.RecordEvent(audit.EventStartup, time.Now(), *configPath)

	var notifier *dbusnotify.Notifier
	if cfg.DBusNotify {
		notifier = dbusnotify.New(log.Logger)
		defer notifier.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &daemon{
		cfg:      cfg,
		log:      log,
		pool:     poolbuf.New(cfg.PoolSizeBytes),
		groups:   make(map[uint32]*group.Group),
		auditLog: auditLog,
		notifier: notifier,
		ctx:      ctx,
		wg:       &sync.WaitGroup{},
	}

	if err := lockPoolMemory(d.pool.UnderlyingBytes()); err != nil {
		log.Warn("could not lock pool memory", "error", err)
	}

	for _, gc := range cfg.Groups {
		d.groups[gc.ID] = group.New(gc.ID, gc.SizeBytes, d.pool)
	}
	d.passthrough = group.New(0, 0, d.pool)

	for _, sc := range cfg.Sources {
		if err := d.startSource(sc); err != nil {
			log.Error("start source", "serial_id", sc.SerialID, "error", err)
		}
	}

	if cfg.KernelFeeder.Enabled {
		sink, closeSink, err := newKernelSink(cfg.KernelFeeder)
		if err != nil {
			log.Warn("kernel feeder unavailable", "error", err)
		} else {
			kf := feeder.NewKernelFeeder(d.pool, sink)
			kf.SetLogger(printfLogger(log, logging.LevelDebug))
			d.wg.Add(1)
			go func() {
				defer d.wg.Done()
				defer closeSink()
				defer kf.Close()
				if err := kf.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("kernel feeder stopped", "error", err)
				}
			}()
		}
	}

	for _, fc := range cfg.FDWriters {
		if err := d.startFDWriter(fc); err != nil {
			log.Error("start fd writer", "path", fc.Path, "error", err)
		}
	}

	for _, qc := range cfg.QASinks {
		if err := d.startQASink(qc); err != nil {
			log.Error("start qa sink", "id", qc.ID, "error", err)
		}
	}

	for _, sc := range cfg.ControlSockets {
		if err := d.startControlSocket(sc); err != nil {
			log.Error("start control socket", "address", sc.Address, "error", err)
		}
	}

	hw := healthwatch.New(auditLog, notifier, time.Second)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		hw.Run(ctx)
	}()

	if os.Getuid() == 0 && *dropUID != 0 {
		log.Info("dropping privileges", "uid", *dropUID, "gid", *dropGID)
		if err := dropPrivileges(*dropUID, *dropGID); err != nil {
			log.Error("drop privileges", "error", err)
			os.Exit(1)
		}
	}

	loader.OnChange(func(prev, next *config.Config) {
		d.applyReload(prev, next)
	})
	if err := loader.Watch(); err != nil {
		log.Warn("config hot-reload unavailable", "error", err)
	}
	defer loader.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("entropyd running")
	<-sigCh
	log.Info("shutdown signal received")

	cancel()
	auditLog.RecordEvent(audit.EventShutdown, time.Now(), "")
	d.stopControlSockets()
	d.wg.Wait()
	log.Info("entropyd stopped")
}

// daemon holds the running state needed to apply additive config reloads.
type daemon struct {
	cfg *config.Config
	log *logging.Logger

	pool   *poolbuf.Pool
	groups map[uint32]*group.Group

	// passthrough is the shared group-id-0 instance every ungrouped
	// source commits through; group id 0 is always a direct pool
	// pass-through (see internal/group's AddEntropy short-circuit).
	passthrough *group.Group

	auditLog *audit.Log
	notifier *dbusnotify.Notifier

	ctx context.Context
	wg  *sync.WaitGroup

	mu      sync.Mutex
	servers []*control.Server
}

// startSource builds and launches one source worker goroutine.
func (d *daemon) startSource(sc config.SourceConfig) error {
	device, err := newDevice(sc)
	if err != nil {
		return err
	}

	grp := d.passthrough
	var mask uint32
	if sc.GroupID != 0 {
		g, ok := d.groups[sc.GroupID]
		if !ok {
			return fmt.Errorf("source %s: group %d is not configured", sc.SerialID, sc.GroupID)
		}
		grp = g
		mask, err = grp.GetNextMask()
		if err != nil {
			return fmt.Errorf("source %s: %w", sc.SerialID, err)
		}
	}

	src := source.New(sourceConfig(sc), device, grp, mask, d.pool)
	srcLog := d.log.WithComponent("source." + sc.SerialID)
	src.SetLogger(printfLogger(srcLog, logging.LevelInfo))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer src.Close()
		if err := src.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			srcLog.Error("source stopped", "error", err)
		}
	}()
	return nil
}

func (d *daemon) startFDWriter(fc config.FDWriterConfig) error {
	f, err := os.OpenFile(fc.Path, os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("fd writer %s: %w", fc.Path, err)
	}
	w := feeder.NewFDWriter(d.pool, f, fc.LimitBytes, fc.ChunkSize)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer f.Close()
		if err := w.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("fd writer stopped", "path", fc.Path, "error", err)
		}
	}()
	return nil
}

func (d *daemon) startQASink(qc config.QASinkConfig) error {
	var sourceCfg config.SourceConfig
	found := false
	for _, sc := range d.cfg.Sources {
		if sc.SerialID == qc.SerialID {
			sourceCfg, found = sc, true
			break
		}
	}
	if !found {
		return fmt.Errorf("qa sink %s: no source with serial_id %s", qc.ID, qc.SerialID)
	}

	device, err := newDevice(sourceCfg)
	if err != nil {
		return err
	}
	sink := feeder.NewQASink(qc.ID, device, qc.ChunkSize)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer sink.Close()
		if err := sink.Run(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("qa sink stopped", "id", qc.ID, "error", err)
		}
	}()
	return nil
}

func (d *daemon) startControlSocket(sc config.SocketConfig) error {
	setVerbosity := func(n int64) { d.log.SetLevel(logging.Level(n)) }
	dispatcher := control.NewDispatcher(setVerbosity)
	server := control.NewServer(control.Address(sc.Address), dispatcher)
	if sc.Group != "" {
		server.SetGroupName(sc.Group)
	}
	if sc.AuthToken != "" {
		auth, err := control.NewTokenAuthenticator(sc.AuthToken)
		if err != nil {
			return fmt.Errorf("control socket %s: %w", sc.Address, err)
		}
		server.SetAuth(auth)
	}
	server.SetLogger(printfLogger(d.log.WithComponent("control"), logging.LevelInfo))

	if err := server.Start(); err != nil {
		return fmt.Errorf("control socket %s: %w", sc.Address, err)
	}

	d.mu.Lock()
	d.servers = append(d.servers, server)
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := server.Serve(d.ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.log.Error("control socket stopped", "address", sc.Address, "error", err)
		}
	}()
	return nil
}

func (d *daemon) stopControlSockets() {
	d.mu.Lock()
	servers := append([]*control.Server(nil), d.servers...)
	d.mu.Unlock()
	for _, s := range servers {
		s.Stop()
	}
}

// applyReload launches any sources and control sockets added since the
// last configuration load. It never stops or reconfigures anything
// already running.
func (d *daemon) applyReload(prev, next *config.Config) {
	d.cfg = next
	d.auditLog.RecordEvent(audit.EventConfigReload, time.Now(), "")

	for _, sc := range config.DiffNewSources(prev, next) {
		if err := d.startSource(sc); err != nil {
			d.log.Error("reload: start source", "serial_id", sc.SerialID, "error", err)
			continue
		}
		d.auditLog.RecordEvent(audit.EventSourceAdded, time.Now(), sc.SerialID)
	}

	for _, sockCfg := range config.DiffNewControlSockets(prev, next) {
		if err := d.startControlSocket(sockCfg); err != nil {
			d.log.Error("reload: start control socket", "address", sockCfg.Address, "error", err)
		}
	}

	if level, err := logging.ParseLevel(next.LogLevel); err == nil && !*verbose {
		d.log.SetLevel(level)
	}
}
