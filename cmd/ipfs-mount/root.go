package main

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/wforney/net-ipfs-mount/internal/config"
	"github.com/wforney/net-ipfs-mount/internal/logging"
	"github.com/wforney/net-ipfs-mount/internal/metrics"
	"github.com/wforney/net-ipfs-mount/internal/mount"
	"github.com/wforney/net-ipfs-mount/internal/resources"
	"github.com/wforney/net-ipfs-mount/internal/store"
	"github.com/wforney/net-ipfs-mount/internal/vfs"
)

// patched in tests
var (
	backendFactory  = newBackend
	externalUnmount = mount.ExternalUnmount
)

// usageError is a command line mistake. It is reported without the cause
// chain and followed by a pointer to --help.
type usageError struct {
	msg    string
	detail error
}

func (e *usageError) Error() string {
	if e.detail != nil {
		return fmt.Sprintf("%s (%v)", e.msg, e.detail)
	}
	return e.msg
}

type rootOptions struct {
	server      string
	unmount     bool
	debug       bool
	backend     string
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "ipfs-mount <drive>",
		Short: "Mount the IPFS on the specified drive",
		Long: `Mount the IPFS on the specified drive.

The drive shows two folders. /ipfs lists the pinned objects and resolves any
content identifier by name. /ipns is reserved for names. Everything is read-only.

On Windows the drive is a letter such as T or T:. Elsewhere it is a directory.`,
		Args: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				return &usageError{msg: "Missing the drive letter."}
			case len(args) > 1:
				return &usageError{msg: "Unknown option", detail: fmt.Errorf("unexpected argument %q", args[1])}
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: "Unknown option", detail: err}
	})

	f := cmd.Flags()
	f.StringVarP(&o.server, "server", "s", store.DefaultAPIURL, "IPFS API server address")
	f.BoolVarP(&o.unmount, "unmount", "u", false, "Unmount the drive")
	f.BoolVarP(&o.debug, "debug", "d", false, "Display debug information")
	f.StringVar(&o.backend, "backend", config.BackendAuto, "Filesystem host: auto, cgofuse or gofuse")
	f.StringVar(&o.configPath, "config", "", "YAML config file (default $IPFS_MOUNT_CONFIG)")
	f.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	f.StringVar(&o.logFormat, "log-format", "", "Log format: console or json (default picks by terminal)")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return cmd
}

// apply overrides cfg with the flags that were set on the command line.
func (o *rootOptions) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("server") {
		cfg.APIURL = o.server
	}
	if flags.Changed("debug") {
		cfg.Debug = o.debug
	}
	if flags.Changed("backend") {
		cfg.Backend = o.backend
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = o.logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.metricsAddr
	}
}

func (o *rootOptions) run(cmd *cobra.Command, drive string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	o.apply(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logging.Init(logging.Config{Level: cfg.EffectiveLogLevel(), Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync() //nolint:errcheck

	target := NormalizeTarget(runtime.GOOS, drive)
	ctx := cmd.Context()

	client := store.New(store.Config{
		APIURL:        cfg.APIURL,
		Timeout:       cfg.Timeout,
		RetryAttempts: uint(cfg.RetryAttempts),
		PinType:       cfg.PinType,
	})
	ctrl := mount.NewController(mount.Options{
		Store:      client,
		Endpoint:   client.APIURL(),
		NewBackend: backendFactory(cfg),
		External:   externalUnmount,
		Out:        cmd.OutOrStdout(),
	})

	if o.unmount {
		return ctrl.Unmount(ctx, target)
	}

	statics, err := resources.Default()
	if err != nil {
		return fmt.Errorf("load bundled resources: %w", err)
	}
	fsys := vfs.New(client, statics, vfs.Options{
		VolumeLabel:     cfg.VolumeLabel,
		ListConcurrency: cfg.ListConcurrency,
		Out:             cmd.OutOrStdout(),
	})

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer srv.Close()
	}

	logging.Info("starting",
		zap.String("target", target),
		zap.String("api", cfg.APIURL),
		zap.String("backend", cfg.Backend))
	return ctrl.Mount(ctx, target, cfg.Debug, fsys)
}

// NormalizeTarget turns the drive argument into a mount target. On Windows
// a bare letter or a letter with a colon becomes "X:". Other systems take a
// directory path.
func NormalizeTarget(goos, drive string) string {
	if goos == "windows" {
		d := strings.TrimRight(drive, `\/`)
		if len(d) == 1 || (len(d) == 2 && d[1] == ':') {
			return strings.ToUpper(d[:1]) + ":"
		}
		return drive
	}
	if abs, err := filepath.Abs(drive); err == nil {
		return abs
	}
	return filepath.Clean(drive)
}

// resolveBackend picks the host for "auto": go-fuse on Linux, cgofuse on
// everything else.
func resolveBackend(name, goos string) string {
	if name != config.BackendAuto {
		return name
	}
	if goos == "linux" {
		return config.BackendGoFuse
	}
	return config.BackendCgoFuse
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
