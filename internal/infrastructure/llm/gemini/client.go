package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/ports"
	"github.com/kirillkom/fitscore/internal/infrastructure/llm"
	"github.com/kirillkom/fitscore/internal/infrastructure/resilience"
)

const DefaultModel = "gemini-1.5-flash"

// Client sends one multimodal generateContent request per document: a file
// reference part plus the instruction text.
type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
	reader ports.ObjectReader
}

// New builds a client. reader is used for objects Gemini cannot fetch by
// URI (local files, private buckets); it may be nil.
func New(ctx context.Context, apiKey, modelName string, reader ports.ObjectReader) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = DefaultModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"

	return &Client{client: client, model: model, reader: reader}, nil
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Infer(ctx context.Context, object domain.StoredObject, mimeType, instruction string) (string, error) {
	filePart, err := c.filePart(ctx, object, mimeType)
	if err != nil {
		return "", err
	}
	resp, err := c.model.GenerateContent(ctx, filePart, genai.Text(instruction))
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return responseText(resp)
}

// filePart always inlines the bytes: FileData only accepts Files API URIs,
// which none of the blob stores produce.
func (c *Client) filePart(ctx context.Context, object domain.StoredObject, mimeType string) (genai.Part, error) {
	data, err := llm.ReadObject(ctx, c.reader, object)
	if err != nil {
		return nil, err
	}
	return genai.Blob{MIMEType: mimeType, Data: data}, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.New("gemini returned no text parts")
	}
	return sb.String(), nil
}

// CountsAsFailure treats blocked prompts and 4xx answers as request problems
// rather than an unhealthy upstream.
func (c *Client) CountsAsFailure(err error) bool {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return resilience.IsUpstreamFailureStatus(apiErr.Code)
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) && coded.HTTPCode() > 0 {
		return resilience.IsUpstreamFailureStatus(coded.HTTPCode())
	}
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return resilience.IsUpstreamFailureStatus(http.StatusTooManyRequests)
	}
	return resilience.CountsAsFailure(err)
}
