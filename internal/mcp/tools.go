package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/langtransd/langtrans/internal/model"
	"github.com/langtransd/langtrans/internal/prompt"
)

// registerTools registers the translation tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	srv.AddTool(
		mcp.NewTool("translate",
			mcp.WithDescription(
				"Translate text between supported languages using the local "+
					"translation model. Language codes are lowercase ISO 639-1 "+
					"and matched exactly. Use list_languages to see the "+
					"supported set.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("from",
				mcp.Required(),
				mcp.Description("Source language code (e.g. \"en\")"),
			),
			mcp.WithString("to",
				mcp.Required(),
				mcp.Description("Target language code (e.g. \"ko\")"),
			),
			mcp.WithString("text",
				mcp.Required(),
				mcp.Description("The text to translate"),
			),
		),
		s.handleTranslate,
	)

	srv.AddTool(
		mcp.NewTool("list_languages",
			mcp.WithDescription(
				"List the language codes the translation model supports, with "+
					"their English display names.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListLanguages,
	)
}

// handleTranslate validates the language pair and runs a generation.
func (s *MCPServer) handleTranslate(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	fromCode, err := request.RequireString("from")
	if err != nil {
		return toolError("missing required parameter %q", "from")
	}
	toCode, err := request.RequireString("to")
	if err != nil {
		return toolError("missing required parameter %q", "to")
	}
	text, err := request.RequireString("text")
	if err != nil {
		return toolError("missing required parameter %q", "text")
	}

	from, err := model.ParseLanguage(fromCode)
	if err != nil {
		return toolError("%v. Supported codes: %v", err, model.Languages)
	}
	to, err := model.ParseLanguage(toCode)
	if err != nil {
		return toolError("%v. Supported codes: %v", err, model.Languages)
	}

	out, err := s.translator.Translate(ctx, prompt.Build(from, to, text))
	if err != nil {
		s.logger.Error("mcp translation failed", "error", err)
		return toolError("translation failed: %v", err)
	}
	return mcp.NewToolResultText(out), nil
}

// handleListLanguages returns the supported language set.
func (s *MCPServer) handleListLanguages(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	type languageInfo struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	items := make([]languageInfo, len(model.Languages))
	for i, l := range model.Languages {
		items[i] = languageInfo{Code: string(l), Name: l.DisplayName()}
	}
	return successJSON(items)
}

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the client so it can self-correct; they do NOT terminate the
// MCP session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
