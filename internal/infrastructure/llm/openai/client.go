package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/ports"
	"github.com/kirillkom/fitscore/internal/infrastructure/llm"
	"github.com/kirillkom/fitscore/internal/infrastructure/resilience"
)

const (
	DefaultModel = "gpt-4o-mini"
	maxTokens    = 2048
)

type Client struct {
	client *openai.Client
	model  string
	reader ports.ObjectReader
}

// New builds a chat-completions client. baseURL may point at any
// OpenAI-compatible endpoint; empty keeps the library default.
func New(apiKey, baseURL, model string, reader ports.ObjectReader) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Client{client: openai.NewClientWithConfig(cfg), model: model, reader: reader}
}

func (c *Client) Name() string { return "openai" }

func (c *Client) Infer(ctx context.Context, object domain.StoredObject, mimeType, instruction string) (string, error) {
	parts, err := c.userParts(ctx, object, mimeType, instruction)
	if err != nil {
		return "", err
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	}
	if strings.HasPrefix(c.model, "o1") || strings.HasPrefix(c.model, "o3") || strings.HasPrefix(c.model, "o4") || strings.HasPrefix(c.model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// userParts attaches images as image_url parts (remote URL or inline data
// URL). Other document types are referenced by URL in the text part since
// chat completions only accept images.
func (c *Client) userParts(ctx context.Context, object domain.StoredObject, mimeType, instruction string) ([]openai.ChatMessagePart, error) {
	if !llm.IsImage(mimeType) {
		if !llm.IsRemoteURI(object.URI) {
			return nil, fmt.Errorf("%w: %s at %s", llm.ErrUnsupportedDocument, mimeType, object.URI)
		}
		text := fmt.Sprintf("Document (%s): %s\n\n%s", mimeType, object.URI, instruction)
		return []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: text}}, nil
	}

	url := object.URI
	if !llm.IsRemoteURI(url) {
		data, err := llm.ReadObject(ctx, c.reader, object)
		if err != nil {
			return nil, err
		}
		url = llm.DataURL(mimeType, data)
	}
	return []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: url, Detail: openai.ImageURLDetailHigh}},
		{Type: openai.ChatMessagePartTypeText, Text: instruction},
	}, nil
}

func (c *Client) CountsAsFailure(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return resilience.IsUpstreamFailureStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return resilience.IsUpstreamFailureStatus(reqErr.HTTPStatusCode)
	}
	return resilience.CountsAsFailure(err)
}
