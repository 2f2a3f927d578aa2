package main

import (
	"fmt"
	"strings"

	"github.com/duynguyendang/blockbaker/pkg/export"
	"github.com/duynguyendang/blockbaker/pkg/service"
	"github.com/spf13/cobra"
)

var (
	blocksAdd    []string
	blocksRemove []string
)

// blocksCmd adds blocks to tags and removes them
var blocksCmd = &cobra.Command{
	Use:   "blocks <blocks...>",
	Short: "Add blocks to tags or remove them",
	Long: `Adds the given block descriptors to every --add tag and removes them
from every --remove tag. Tags are given as 'tag' or 'tag:value'. Every
tag is checked before anything is saved.

Example:
  blockbaker blocks oak_stairs spruce_stairs -a stairs/wooden -a material:wood`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBlocks,
}

// queryCmd evaluates an expression
var queryCmd = &cobra.Command{
	Use:   "query <expression...>",
	Short: "Evaluate a tag expression and print the matching blocks",
	Long: `Evaluates an expression over the project's tags. The arguments are
joined with spaces.

Examples:
  blockbaker query stairs - stairs/wooden
  blockbaker query 'material:wood & [oak_stairs oak_slab]'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

// exportCmd bakes an export configuration
var exportCmd = &cobra.Command{
	Use:   "export <config>",
	Short: "Bake the flags of a YAML or JSON config into block.properties and a decoder header",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

func init() {
	blocksCmd.Flags().StringSliceVarP(&blocksAdd, "add", "a", nil, "Tags to add the blocks to")
	blocksCmd.Flags().StringSliceVarP(&blocksRemove, "remove", "r", nil, "Tags to remove the blocks from")
}

func runBlocks(cmd *cobra.Command, args []string) error {
	if len(blocksAdd) == 0 && len(blocksRemove) == 0 {
		return fmt.Errorf("nothing to do: pass --add or --remove")
	}
	blocks, err := service.ParseBlocks(args)
	if err != nil {
		return err
	}
	if err := catalog.TagBlocks(cmd.Context(), settings.Project, blocks, blocksAdd, blocksRemove); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %d blocks\n", blocks.Len())
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	res, err := catalog.Query(cmd.Context(), settings.Project, strings.Join(args, " "))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Evaluating expression %s\n", res.Parsed)
	for _, b := range res.Blocks {
		fmt.Fprintln(out, b)
	}
	fmt.Fprintf(out, "%d blocks\n", res.Count)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := export.LoadConfig(args[0])
	if err != nil {
		return err
	}
	res, err := catalog.Export(cmd.Context(), settings.Project, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d masks to %s and %s\n", len(res.Masks), cfg.PropertiesPath(), cfg.DecoderPath())
	return nil
}
