package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/ports"
	"github.com/kirillkom/fitscore/internal/infrastructure/llm"
)

const DefaultModel = "llava"

// Client talks to a self-hosted Ollama vision model. Ollama cannot fetch
// URLs, so image bytes are read back from the blob store and inlined.
type Client struct {
	baseURL    string
	model      string
	reader     ports.ObjectReader
	httpClient *http.Client
}

func New(baseURL, model string, reader ports.ObjectReader) *Client {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		reader:     reader,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Client) Name() string { return "ollama" }

func (c *Client) Infer(ctx context.Context, object domain.StoredObject, mimeType, instruction string) (string, error) {
	if !llm.IsImage(mimeType) {
		return "", fmt.Errorf("%w: %s", llm.ErrUnsupportedDocument, mimeType)
	}
	data, err := llm.ReadObject(ctx, c.reader, object)
	if err != nil {
		return "", err
	}

	reqBody := generateRequest{
		Model:  c.model,
		Prompt: instruction,
		Images: []string{base64.StdEncoding.EncodeToString(data)},
		Stream: false,
		Format: "json",
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Stream bool     `json:"stream"`
	Format string   `json:"format"`
}
