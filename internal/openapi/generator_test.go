package openapi

import (
	"testing"

	"github.com/langtransd/langtrans/internal/model"
)

func TestGenerate(t *testing.T) {
	doc := Generate("http://localhost:8080", "1.2.3")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("got version %q", doc.OpenAPI)
	}
	if doc.Info.Version != "1.2.3" {
		t.Errorf("got info version %q", doc.Info.Version)
	}

	path := doc.Paths.Value("/api/translate")
	if path == nil {
		t.Fatal("missing /api/translate path")
	}
	if path.Get == nil || path.Post == nil {
		t.Fatal("expected both GET and POST operations")
	}
	for _, status := range []string{"200", "400", "401", "413", "429"} {
		if path.Get.Responses.Value(status) == nil {
			t.Errorf("GET missing %s response", status)
		}
	}

	langSchema := doc.Components.Schemas["Language"]
	if langSchema == nil {
		t.Fatal("missing Language schema")
	}
	if got := len(langSchema.Value.Enum); got != len(model.Languages) {
		t.Errorf("language enum has %d entries, want %d", got, len(model.Languages))
	}

	if _, ok := doc.Components.SecuritySchemes["bearerAuth"]; !ok {
		t.Error("missing bearerAuth security scheme")
	}
}

func TestGenerateMarshals(t *testing.T) {
	doc := Generate("http://localhost:8080", "dev")
	data, err := doc.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if len(data) == 0 {
		t.Error("empty document")
	}
}
