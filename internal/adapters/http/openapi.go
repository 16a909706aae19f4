package httpadapter

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.json
var openAPISpec []byte

var loadOpenAPIOnce = sync.OnceValues(func() (*openapi3.T, error) {
	return LoadOpenAPI(context.Background())
})

// LoadOpenAPI parses and validates the embedded API description.
func LoadOpenAPI(ctx context.Context) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	doc, err := loadOpenAPIOnce()
	if err != nil {
		slog.Error("openapi_unavailable", "error", err)
		writeError(w, http.StatusInternalServerError, "api description unavailable")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
