// Package openapi generates the service's OpenAPI 3.1 document.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/langtransd/langtrans/internal/model"
)

// Generate builds the OpenAPI spec for the translation API.
func Generate(baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "LangTrans API",
			Description: "Machine translation API backed by a local ONNX seq2seq model.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:        "http",
			Scheme:      "bearer",
			Description: "API key issued from the admin console.",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"bearerAuth": {}},
	}

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
						},
					},
				},
			},
		},
	}

	langEnum := make([]interface{}, len(model.Languages))
	for i, l := range model.Languages {
		langEnum[i] = string(l)
	}
	langSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:        &openapi3.Types{"string"},
			Enum:        langEnum,
			Description: "ISO 639-1 language code (exact lowercase match).",
		},
	}
	doc.Components.Schemas["Language"] = langSchema

	doc.Components.Schemas["TranslateRequest"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"from", "to", "text"},
			Properties: openapi3.Schemas{
				"from": {Ref: "#/components/schemas/Language"},
				"to":   {Ref: "#/components/schemas/Language"},
				"text": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}

	doc.Paths = openapi3.NewPaths()
	doc.Paths.Set("/api/translate", translatePath())
	return doc
}

func translatePath() *openapi3.PathItem {
	okResponse := &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: strPtr("The translated text."),
			Content: openapi3.Content{
				"text/plain": &openapi3.MediaType{
					Schema: &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				},
			},
		},
	}
	errResponse := func(desc string) *openapi3.ResponseRef {
		return &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: strPtr(desc),
				Content: openapi3.Content{
					"application/json": &openapi3.MediaType{
						Schema: &openapi3.SchemaRef{Ref: "#/components/schemas/ErrorResponse"},
					},
				},
			},
		}
	}

	responses := openapi3.NewResponses()
	responses.Set("200", okResponse)
	responses.Set("400", errResponse("Unsupported language code or missing field."))
	responses.Set("401", errResponse("Invalid or missing API key."))
	responses.Set("413", errResponse("Input text exceeds the token budget."))
	responses.Set("429", errResponse("Rate limit exceeded."))

	langParam := func(name string) *openapi3.ParameterRef {
		return &openapi3.ParameterRef{
			Value: &openapi3.Parameter{
				Name:     name,
				In:       "query",
				Required: true,
				Schema:   &openapi3.SchemaRef{Ref: "#/components/schemas/Language"},
			},
		}
	}

	return &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "translateGet",
			Summary:     "Translate text (query parameters)",
			Parameters: openapi3.Parameters{
				langParam("from"),
				langParam("to"),
				&openapi3.ParameterRef{
					Value: &openapi3.Parameter{
						Name:     "text",
						In:       "query",
						Required: true,
						Schema:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
					},
				},
			},
			Responses: responses,
		},
		Post: &openapi3.Operation{
			OperationID: "translatePost",
			Summary:     "Translate text (JSON body)",
			RequestBody: &openapi3.RequestBodyRef{
				Value: &openapi3.RequestBody{
					Required: true,
					Content: openapi3.Content{
						"application/json": &openapi3.MediaType{
							Schema: &openapi3.SchemaRef{Ref: "#/components/schemas/TranslateRequest"},
						},
					},
				},
			},
			Responses: responses,
		},
	}
}

func strPtr(s string) *string { return &s }
