package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/duynguyendang/blockbaker/pkg/bake"
	"github.com/duynguyendang/blockbaker/pkg/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const (
	tagsURI   = "blockbaker://tags"
	syntaxURI = "blockbaker://syntax"
)

// MCPServer exposes one project's tag library via MCP.
type MCPServer struct {
	catalog *service.CatalogService
	project string
	logger  *zap.Logger
}

// New creates the MCP server for project with every tool and resource
// registered.
func New(catalog *service.CatalogService, project string, logger *zap.Logger) (*server.MCPServer, *MCPServer) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := server.NewMCPServer(
		"BlockBaker",
		"0.1.0",
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)
	ms := &MCPServer{catalog: catalog, project: project, logger: logger}

	// --- Resources ---

	s.AddResource(
		mcp.NewResource(
			tagsURI,
			"Tag Index",
			mcp.WithResourceDescription("Every tag of the library with its kind"),
			mcp.WithMIMEType("application/json"),
		),
		ms.handleTagIndex,
	)

	s.AddResource(
		mcp.NewResource(
			syntaxURI,
			"Expression Syntax",
			mcp.WithResourceDescription("The tag expression language"),
			mcp.WithMIMEType("text/markdown"),
		),
		ms.handleSyntax,
	)

	// --- Tools ---

	s.AddTool(
		mcp.NewTool(
			"query_tags",
			mcp.WithDescription("Evaluate a tag expression and return the matching block descriptors."),
			mcp.WithString("expression", mcp.Required(), mcp.Description("Expression such as 'stairs & material:wood - [oak_stairs]'")),
		),
		ms.handleQuery,
	)

	s.AddTool(
		mcp.NewTool(
			"list_tags",
			mcp.WithDescription("List tag paths, optionally filtered by a glob such as 'stairs/**'."),
			mcp.WithString("glob", mcp.Description("Doublestar glob over tag paths")),
		),
		ms.handleListTags,
	)

	s.AddTool(
		mcp.NewTool(
			"describe_tag",
			mcp.WithDescription("Show a tag's kind, blocks and, for enum tags, the blocks of each value."),
			mcp.WithString("path", mcp.Required(), mcp.Description("Tag path, e.g. stairs/wooden")),
		),
		ms.handleDescribeTag,
	)

	s.AddTool(
		mcp.NewTool(
			"bake_flags",
			mcp.WithDescription("Partition the blocks matched by named flag expressions into disjoint masks."),
			mcp.WithArray("flags",
				mcp.Required(),
				mcp.Description("Ordered list of {name, expression} objects"),
				mcp.Items(map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":       map[string]any{"type": "string"},
						"expression": map[string]any{"type": "string"},
					},
					"required": []string{"name", "expression"},
				}),
			),
		),
		ms.handleBake,
	)

	s.AddTool(
		mcp.NewTool(
			"verify_library",
			mcp.WithDescription("Report stored tags holding blocks their parent lacks."),
		),
		ms.handleVerify,
	)

	return s, ms
}

// Run starts the MCP server on Stdio.
func Run(ctx context.Context, catalog *service.CatalogService, project string, logger *zap.Logger) error {
	s, ms := New(catalog, project, logger)
	ms.logger.Info("Starting MCP server on Stdio", zap.String("project", project))
	return server.ServeStdio(s)
}

// --- Resource Handlers ---

func (ms *MCPServer) handleTagIndex(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := ms.catalog.ListTags(ctx, ms.project, "")
	if err != nil {
		return nil, err
	}
	jsonBytes, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tag index: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}

const syntax = `
# Tag Expressions

- 'tag/path' evaluates to the blocks of a tag, including its children.
- 'tag:value' evaluates to one value of an enum tag.
- '[minecraft:oak_slab:type=top stone]' is a literal list of block descriptors.
- Operators: '+' union, '-' difference, '&' intersection, '^' symmetric difference.
- Operators associate to the left with equal precedence; use parentheses to group.

Descriptors are written 'namespace:name:key=v1,v2:key2=v3'. The namespace
defaults to 'minecraft' and missing properties match any value.
`

func (ms *MCPServer) handleSyntax(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/markdown",
			Text:     syntax,
		},
	}, nil
}

// --- Tool Handlers ---

func (ms *MCPServer) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	expression, ok := args["expression"].(string)
	if !ok || strings.TrimSpace(expression) == "" {
		return mcp.NewToolResultError("expression argument required"), nil
	}

	res, err := ms.catalog.Query(ctx, ms.project, expression)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	if res.Count == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("%s matches no blocks.", res.Parsed)), nil
	}
	return mcp.NewToolResultText(strings.Join(res.Blocks, "\n")), nil
}

func (ms *MCPServer) handleListTags(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	glob, _ := args["glob"].(string)

	list, err := ms.catalog.ListTags(ctx, ms.project, glob)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("No tags found."), nil
	}
	lines := make([]string, len(list))
	for i, t := range list {
		lines[i] = fmt.Sprintf("%s (%s)", t.Path, t.Kind)
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (ms *MCPServer) handleDescribeTag(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return mcp.NewToolResultError("path argument required"), nil
	}

	info, err := ms.catalog.DescribeTag(ctx, ms.project, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	jsonBytes, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (ms *MCPServer) handleBake(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	raw, ok := args["flags"].([]any)
	if !ok || len(raw) == 0 {
		return mcp.NewToolResultError("flags argument required"), nil
	}
	flags := make([]bake.Flag, 0, len(raw))
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("flag %d must be an object", i)), nil
		}
		name, _ := obj["name"].(string)
		expression, _ := obj["expression"].(string)
		if name == "" || expression == "" {
			return mcp.NewToolResultError(fmt.Sprintf("flag %d needs a name and an expression", i)), nil
		}
		flags = append(flags, bake.Flag{Name: name, Expression: expression})
	}

	res, err := ms.catalog.Bake(ctx, ms.project, flags)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("bake failed: %v", err)), nil
	}
	var sb strings.Builder
	for _, m := range res.Masks {
		fmt.Fprintf(&sb, "block.%d [%s] = %s\n", m.ID, strings.Join(m.Flags, ", "), strings.Join(m.Blocks, " "))
	}
	for _, f := range flags {
		fmt.Fprintf(&sb, "%s: %v\n", f.Name, res.Decoders[f.Name])
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (ms *MCPServer) handleVerify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	violations, err := ms.catalog.Verify(ctx, ms.project)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("verify failed: %v", err)), nil
	}
	if len(violations) == 0 {
		return mcp.NewToolResultText("No violations found."), nil
	}
	return mcp.NewToolResultText(strings.Join(violations, "\n")), nil
}
