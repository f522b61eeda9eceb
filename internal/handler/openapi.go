package handler

import (
	"net/http"
	"sync"

	"github.com/langtransd/langtrans/internal/openapi"
)

// OpenAPIHandler serves the generated API document. The document is static
// for the life of the process, so it is rendered once and cached.
type OpenAPIHandler struct {
	baseURL string
	version string

	once sync.Once
	doc  []byte
	err  error
}

// NewOpenAPIHandler creates an OpenAPIHandler.
func NewOpenAPIHandler(baseURL, version string) *OpenAPIHandler {
	return &OpenAPIHandler{baseURL: baseURL, version: version}
}

// ServeSpec handles GET /openapi.json.
func (h *OpenAPIHandler) ServeSpec(w http.ResponseWriter, r *http.Request) {
	h.once.Do(func() {
		h.doc, h.err = openapi.Generate(h.baseURL, h.version).MarshalJSON()
	})
	if h.err != nil {
		writeError(w, http.StatusInternalServerError, "could not render API document")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.doc)
}
