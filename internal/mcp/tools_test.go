package mcp

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

type stubTranslator struct {
	lastPrompt string
	out        string
}

func (s *stubTranslator) Translate(_ context.Context, promptText string) (string, error) {
	s.lastPrompt = promptText
	return s.out, nil
}

func newTestServer(tr Translator) *MCPServer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMCPServer(tr, "test", logger)
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return tc.Text
}

func TestHandleTranslate(t *testing.T) {
	tr := &stubTranslator{out: "Hallo Welt"}
	s := newTestServer(tr)

	res, err := s.handleTranslate(context.Background(), callRequest(map[string]interface{}{
		"from": "en", "to": "de", "text": "Hello world",
	}))
	if err != nil {
		t.Fatalf("handleTranslate: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, res))
	}
	if got := textContent(t, res); got != "Hallo Welt" {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(tr.lastPrompt, "from English to German") {
		t.Errorf("prompt missing languages: %q", tr.lastPrompt)
	}
}

func TestHandleTranslateBadLanguage(t *testing.T) {
	tr := &stubTranslator{out: "unused"}
	s := newTestServer(tr)

	res, err := s.handleTranslate(context.Background(), callRequest(map[string]interface{}{
		"from": "EN", "to": "de", "text": "Hello",
	}))
	if err != nil {
		t.Fatalf("handleTranslate: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for uppercase code")
	}
	if tr.lastPrompt != "" {
		t.Error("model must not run for invalid input")
	}
}

func TestHandleTranslateMissingArgument(t *testing.T) {
	s := newTestServer(&stubTranslator{})

	res, err := s.handleTranslate(context.Background(), callRequest(map[string]interface{}{
		"from": "en", "to": "de",
	}))
	if err != nil {
		t.Fatalf("handleTranslate: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for missing text")
	}
}

func TestHandleListLanguages(t *testing.T) {
	s := newTestServer(&stubTranslator{})

	res, err := s.handleListLanguages(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("handleListLanguages: %v", err)
	}
	body := textContent(t, res)
	for _, want := range []string{`"en"`, `"ko"`, "Korean", "Arabic"} {
		if !strings.Contains(body, want) {
			t.Errorf("listing missing %q: %s", want, body)
		}
	}
}
