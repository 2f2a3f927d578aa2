package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	createValues []string
	editAdd      []string
	editRemove   []string
	deleteForce  bool
)

// tagCmd groups the tag management commands
var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Create, edit, delete and list tags",
}

var tagCreateCmd = &cobra.Command{
	Use:   "create <tag>",
	Short: "Create a tag; with --values it is an enum tag",
	Long: `Creates a tag under an existing parent.

Examples:
  blockbaker tag create stairs
  blockbaker tag create stairs/wooden
  blockbaker tag create material -V wood -V stone`,
	Args: cobra.ExactArgs(1),
	RunE: runTagCreate,
}

var tagEditCmd = &cobra.Command{
	Use:   "edit <tag>",
	Short: "Add or remove values of an enum tag",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagEdit,
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete <tag>",
	Short: "Delete a tag and everything below it",
	Long: `Deletes a tag together with its children. A tag that still holds
blocks is only deleted after confirmation, unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runTagDelete,
}

var tagListCmd = &cobra.Command{
	Use:   "list [glob]",
	Short: "List tags, optionally filtered by a glob such as 'stairs/**'",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTagList,
}

func init() {
	tagCreateCmd.Flags().StringSliceVarP(&createValues, "values", "V", nil, "Values of an enum tag")
	tagEditCmd.Flags().StringSliceVarP(&editAdd, "add", "a", nil, "Values to add")
	tagEditCmd.Flags().StringSliceVarP(&editRemove, "remove", "r", nil, "Values to remove")
	tagDeleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete without confirmation")

	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagEditCmd)
	tagCmd.AddCommand(tagDeleteCmd)
	tagCmd.AddCommand(tagListCmd)
}

func runTagCreate(cmd *cobra.Command, args []string) error {
	info, err := catalog.CreateTag(cmd.Context(), settings.Project, args[0], createValues)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s tag %s\n", info.Kind, info.Path)
	return nil
}

func runTagEdit(cmd *cobra.Command, args []string) error {
	if len(editAdd) == 0 && len(editRemove) == 0 {
		return fmt.Errorf("nothing to do: pass --add or --remove")
	}
	info, err := catalog.EditValues(cmd.Context(), settings.Project, args[0], editAdd, editRemove)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d values\n", info.Path, len(info.Values))
	return nil
}

func runTagDelete(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !deleteForce {
		info, err := catalog.DescribeTag(cmd.Context(), settings.Project, path)
		if err != nil {
			return err
		}
		if len(info.Blocks) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Tag %s holds %d blocks. Delete it? [y/N] ", path, len(info.Blocks))
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				logger.Info("Delete cancelled", zap.String("tag", path))
				return nil
			}
		}
	}
	if err := catalog.DeleteTag(cmd.Context(), settings.Project, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", path)
	return nil
}

func runTagList(cmd *cobra.Command, args []string) error {
	glob := ""
	if len(args) == 1 {
		glob = args[0]
	}
	list, err := catalog.ListTags(cmd.Context(), settings.Project, glob)
	if err != nil {
		return err
	}
	for _, t := range list {
		suffix := ""
		if t.Virtual {
			suffix = ", virtual"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s%s)\n", t.Path, t.Kind, suffix)
	}
	return nil
}
