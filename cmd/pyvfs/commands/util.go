package commands

import (
	"context"
	"fmt"

	"github.com/R3gardless/pyodide/internal/logger"
	"github.com/R3gardless/pyodide/pkg/config"
	"github.com/R3gardless/pyodide/pkg/metrics"
	"github.com/R3gardless/pyodide/pkg/vfs"
	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/handlefs"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/hostdir"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/kvstore"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/memory"
	"github.com/R3gardless/pyodide/pkg/vfs/backend/objstore"
	"github.com/spf13/cobra"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadAndMount loads configuration, initializes the ambient stack, and
// returns a filesystem with all declared mounts attached. The caller owns
// the returned FS and must Close it.
func loadAndMount(ctx context.Context) (*vfs.FS, *config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}

	if err := InitLogger(cfg); err != nil {
		return nil, nil, err
	}

	var opts []vfs.Option
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		if m := metrics.NewFSMetrics(); m != nil {
			opts = append(opts, vfs.WithMetrics(m))
		}
	}

	fs := vfs.New(opts...)

	for _, m := range cfg.Mounts {
		adapter, err := newAdapter(ctx, m)
		if err != nil {
			fs.Close()
			return nil, nil, fmt.Errorf("mount %s: %w", m.Path, err)
		}
		if _, err := fs.Mount(ctx, m.Path, adapter); err != nil {
			adapter.Close()
			fs.Close()
			return nil, nil, fmt.Errorf("mount %s: %w", m.Path, err)
		}
		logger.Info("mounted backend", logger.MountPoint(m.Path), logger.Backend(m.Backend))
	}

	return fs, cfg, nil
}

// newAdapter constructs the backend adapter declared by a mount entry.
func newAdapter(ctx context.Context, m config.MountConfig) (backend.Adapter, error) {
	switch m.Backend {
	case "memory":
		return memory.New(), nil
	case "kvstore":
		return kvstore.Open(m.Database)
	case "hostdir":
		var opts []hostdir.Option
		if m.Watch {
			opts = append(opts, hostdir.WithWatcher())
		}
		return hostdir.New(m.HostPath, opts...)
	case "handlefs":
		return handlefs.Open(m.Database)
	case "s3":
		return objstore.NewFromConfig(ctx, objstore.Config{
			Bucket:         m.Bucket,
			Region:         m.Region,
			Endpoint:       m.Endpoint,
			KeyPrefix:      m.KeyPrefix,
			ForcePathStyle: m.ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown backend type: %s", m.Backend)
	}
}

// runWithFS wraps a command body with mount setup and teardown. The context
// passed to fn is bounded by the configured sync timeout.
func runWithFS(cmd *cobra.Command, fn func(ctx context.Context, fs *vfs.FS, cfg *config.Config) error) error {
	fs, cfg, err := loadAndMount(cmd.Context())
	if err != nil {
		return err
	}
	defer fs.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SyncTimeout)
	defer cancel()

	return fn(ctx, fs, cfg)
}
