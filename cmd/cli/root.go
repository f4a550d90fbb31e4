package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/clusterkeys/internal/application/keys"
	"github.com/turtacn/clusterkeys/internal/config"
	"github.com/turtacn/clusterkeys/internal/infrastructure/kms"
	"github.com/turtacn/clusterkeys/internal/infrastructure/monitoring"
	"github.com/turtacn/clusterkeys/internal/infrastructure/persistence"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	purpose    string
	verbose    bool
}

// NewRootCommand builds the `keys-admin` command tree.
// NewRootCommand 构建 `keys-admin` 命令树。
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "keys-admin",
		Short: "A CLI tool for administering cluster time signing keys.",
		Long: `keys-admin inspects and maintains the signing keys shared by the nodes of a
cluster: it lists stored keys, resolves the signing key for a cluster time,
forces a generation cycle and talks to the admin API of a running node.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the config file")
	rootCmd.PersistentFlags().StringVar(&opts.purpose, "purpose", "", "key purpose, overrides keys.purpose")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(newKeysCommand(opts), newAdminCommand())
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// It builds the command tree, parses the command-line arguments,
// and executes the appropriate command. If an error occurs, it prints the error and exits.
// Execute 是 CLI 应用程序的主入口点。
// 它构建命令树，解析命令行参数，并执行相应的命令。
// 如果发生错误，它会打印错误并退出。
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runtime is the store-side environment of a one-shot command.
type runtime struct {
	cfg   *config.Config
	log   logger.Logger
	store *persistence.Store
	clock *keys.VectorClock
}

func (o *rootOptions) openRuntime(ctx context.Context) (*runtime, error) {
	log := logger.NewNoopLogger()
	if o.verbose {
		zl, err := monitoring.NewZapLogger(&config.LogConfig{Level: "debug", OutputPath: "stderr"})
		if err != nil {
			return nil, err
		}
		log = zl
	}

	cfg, err := config.LoadConfig(o.configPath, log)
	if err != nil {
		return nil, err
	}
	if o.purpose != "" {
		cfg.Keys.Purpose = o.purpose
	}

	store, err := persistence.OpenStore(ctx, cfg, nil, log)
	if err != nil {
		return nil, err
	}
	return &runtime{
		cfg:   cfg,
		log:   log.WithComponent("cli"),
		store: store,
		clock: keys.NewVectorClock(keys.WithWallClock(time.Now)),
	}, nil
}

// newManager builds a manager over the runtime's store. The clock follows wall
// time so "now" defaults are meaningful outside a cluster.
func (r *runtime) newManager(policy *keys.Switches) (*keys.Manager, error) {
	source, err := kms.NewSource(r.cfg.Store.KeySource, r.cfg.Vault, r.log)
	if err != nil {
		return nil, err
	}
	return keys.NewManager(keys.ManagerConfig{
		Purpose:               r.cfg.Keys.Purpose,
		RotationInterval:      r.cfg.Keys.RotationInterval,
		ValidationWaitTimeout: r.cfg.Keys.ValidationWaitTimeout,
		NodeID:                r.cfg.Keys.NodeID,
	}, r.store.Repository, source, r.clock,
		keys.WithLogger(r.log),
		keys.WithPolicy(policy),
	)
}

func (r *runtime) Close() {
	r.store.Close()
}

//Personal.AI order the ending
