package main

import (
	"fmt"

	"github.com/duynguyendang/blockbaker/pkg/mcp"
	"github.com/duynguyendang/blockbaker/pkg/repl"
	"github.com/duynguyendang/blockbaker/pkg/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var replLimit int

// serveCmd runs the REST API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Serves every project of the data directory over HTTP on $PORT.
With the fs backend, changes made to a project directory by other
processes reload that project.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// mcpCmd runs the MCP server on stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server on stdio for the selected project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.Run(cmd.Context(), catalog, settings.Project, logger)
	},
}

// replCmd starts the interactive shell
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive expression shell for the selected project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := repl.DefaultConfig()
		cfg.Project = settings.Project
		cfg.Limit = replLimit
		return repl.Run(cmd.Context(), cfg, catalog, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

// projectsCmd lists projects
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the projects of the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		projects, err := catalog.ListProjects()
		if err != nil {
			return err
		}
		for _, p := range projects {
			if p.Description != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.ID, p.Description)
				continue
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		}
		return nil
	},
}

// verifyCmd checks inheritance
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report tags holding blocks their parent lacks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		violations, err := catalog.Verify(cmd.Context(), settings.Project)
		if err != nil {
			return err
		}
		for _, v := range violations {
			fmt.Fprintln(cmd.OutOrStdout(), v)
		}
		if len(violations) > 0 {
			return fmt.Errorf("%d violations", len(violations))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No violations found.")
		return nil
	},
}

func init() {
	replCmd.Flags().IntVar(&replLimit, "limit", repl.DefaultConfig().Limit, "Blocks printed per result (0 prints all)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info("Starting REST API server",
		zap.String("data_dir", settings.DataDir),
		zap.String("backend", string(settings.Backend)))

	srv := server.NewServer(catalog, logger)
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return srv.Serve(ctx, settings.Addr())
	})
	g.Go(func() error {
		return mgr.Watch(ctx)
	})
	return g.Wait()
}
