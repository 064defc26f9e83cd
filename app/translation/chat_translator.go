package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/lysyi3m/gh-digest/app/database"
)

// HTTPClient interface for HTTP operations (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type ChatConfig struct {
	URL            string // base URL of an OpenAI-compatible API
	APIKey         string
	Model          string
	TargetLanguage string // BCP 47 tag
	UserAgent      string
}

// ChatTranslator translates through a chat completions endpoint that is asked to answer
// with a JSON object holding title, body and summary.
type ChatTranslator struct {
	client       *openai.Client
	model        string
	languageName string
}

func NewChatTranslator(config ChatConfig, httpClient HTTPClient) (*ChatTranslator, error) {
	tag, err := language.Parse(config.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("invalid target language %q: %w", config.TargetLanguage, err)
	}

	name := display.English.Tags().Name(tag)
	if name == "" {
		name = tag.String()
	}

	model := config.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimRight(config.URL, "/")
	clientConfig.HTTPClient = httpClient
	if config.UserAgent != "" {
		clientConfig.HTTPClient = &userAgentClient{next: httpClient, userAgent: config.UserAgent}
	}

	return &ChatTranslator{
		client:       openai.NewClientWithConfig(clientConfig),
		model:        model,
		languageName: name,
	}, nil
}

func (t *ChatTranslator) Translate(ctx context.Context, kind database.ActivityKind, title, body string) (*Result, error) {
	completion, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: t.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(kind, title, body)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, translatorError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	var result Result
	content := stripCodeFence(completion.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if result.Title == "" && title != "" {
		return nil, fmt.Errorf("%w: empty title", ErrMalformedResponse)
	}

	return &result, nil
}

// translatorError maps API failures onto the translator's sentinel errors.
func translatorError(err error) error {
	status := 0
	var (
		apiErr     *openai.APIError
		requestErr *openai.RequestError
	)
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &requestErr):
		status = requestErr.HTTPStatusCode
	default:
		return fmt.Errorf("translator request failed: %w", err)
	}

	switch status {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	default:
		return fmt.Errorf("translator returned status %d: %w", status, err)
	}
}

type userAgentClient struct {
	next      HTTPClient
	userAgent string
}

func (c *userAgentClient) Do(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.userAgent)
	return c.next.Do(req)
}

func (t *ChatTranslator) systemPrompt() string {
	return fmt.Sprintf(`You translate GitHub activity into %s.
Reply with a JSON object with the keys "title", "body" and "summary".
Keep markdown, code blocks, URLs, identifiers and version numbers unchanged.
"summary" is at most three sentences in %s.`, t.languageName, t.languageName)
}

func userPrompt(kind database.ActivityKind, title, body string) string {
	var sb strings.Builder
	sb.WriteString("Kind: ")
	sb.WriteString(strings.ReplaceAll(string(kind), "_", " "))
	sb.WriteString("\nTitle: ")
	sb.WriteString(title)
	sb.WriteString("\n\n")
	sb.WriteString(body)
	return sb.String()
}

// stripCodeFence unwraps a reply that arrived inside a ```json fence.
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimPrefix(content, "json")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
