package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/duynguyendang/blockbaker/internal/config"
	"github.com/duynguyendang/blockbaker/internal/logging"
	"github.com/duynguyendang/blockbaker/internal/manager"
	"github.com/duynguyendang/blockbaker/pkg/service"
	"github.com/duynguyendang/blockbaker/pkg/tags/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose  bool
	dev      bool
	dataDir  string
	backend  string
	project  string
	readOnly bool

	settings *config.Settings
	logger   *zap.Logger
	mgr      *manager.LibraryManager
	catalog  *service.CatalogService
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "blockbaker",
	Short: "BlockBaker - tag libraries of block descriptors and bake them into shader masks",
	Long: `BlockBaker keeps hierarchical tag libraries of block descriptors,
evaluates set expressions over them and bakes named flags into disjoint
masks for block.properties and decoder header generation.

Each project is a directory under the data directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("data-dir") {
			settings.DataDir = dataDir
		}
		if cmd.Flags().Changed("backend") {
			settings.Backend = store.Backend(backend)
		}
		if cmd.Flags().Changed("project") {
			settings.Project = project
		}
		if verbose {
			settings.LogLevel = "debug"
		}
		if err := settings.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(settings.LogLevel, dev)
		if err != nil {
			return err
		}

		mgr, err = manager.NewLibraryManager(manager.Options{
			BaseDir:   settings.DataDir,
			Storage:   settings.StorageConfig(readOnly),
			CacheSize: settings.CacheSize,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		catalog = service.NewCatalogService(mgr, logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&dev, "dev", false, "Human-readable console logs")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", config.DefaultDataDir, "Directory holding one directory per project (or set "+config.EnvDataDir+")")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", string(store.BackendFS), "Storage backend: fs, badger or memory (or set "+config.EnvBackend+")")
	rootCmd.PersistentFlags().StringVarP(&project, "project", "p", config.DefaultProject, "Project to operate on (or set "+config.EnvProject+")")
	rootCmd.PersistentFlags().BoolVar(&readOnly, "read-only", false, "Open storage read-only")

	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(replCmd)
}

// cleanup closes open libraries and flushes the logger. Cobra skips
// post-run hooks when a command fails, so main calls it as well.
func cleanup() {
	if mgr != nil {
		mgr.CloseAll()
		mgr = nil
	}
	if logger != nil {
		_ = logger.Sync()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cleanup()
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
