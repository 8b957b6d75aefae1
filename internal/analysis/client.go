// Package analysis talks to an OpenAI-compatible chat-completions service
// for proofreading, readability scoring and style-matched rewriting. The
// service returns structured data wrapped in free text, so responses go
// through defensive extraction before decoding.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"inkwell/api/internal/proofread"
)

var (
	// ErrEmptyText is returned for requests with nothing to analyze.
	ErrEmptyText = errors.New("analysis: empty text")
	// ErrTextTooLarge is returned before any network call when the input
	// exceeds the configured cap.
	ErrTextTooLarge = errors.New("analysis: text too large")
	// ErrMalformedResponse is returned when the service payload cannot be
	// decoded even after delimiter extraction.
	ErrMalformedResponse = errors.New("analysis: malformed service response")
)

const defaultBaseURL = "https://api.openai.com/v1"

const proofreadPrompt = `You are a professional grammar and style checker. Analyze the given text and return JSON issues in the following format:

[{
  "type": "grammar" | "spelling" | "style" | "clarity",
  "start": number,
  "end": number,
  "suggestion": "improved text",
  "explanation": "brief explanation of the issue"
}]

Focus on:
- Grammar errors (subject-verb agreement, tense consistency, etc.)
- Spelling mistakes
- Style improvements (word choice, sentence structure)
- Clarity issues (unclear phrasing, redundancy)

Only return valid JSON. If no issues found, return an empty array [].`

const readabilityPrompt = `Analyze the given text and return readability metrics in JSON format:

{
  "wordCount": number,
  "sentenceCount": number,
  "averageWordLength": number,
  "averageSentenceLength": number,
  "fleschReadingEase": number,
  "complexity": "easy" | "moderate" | "difficult"
}

Calculate Flesch Reading Ease using the formula: 206.835 - (1.015 × average sentence length) - (84.6 × average syllable per word)

Complexity levels:
- Easy: 80-100
- Moderate: 60-79
- Difficult: 0-59

Only return valid JSON.`

const rewritePrompt = `You are a writing assistant that helps users rewrite text in their personal style.

Given a user's writing sample and a passage to rewrite, analyze the user's writing style and rewrite the passage to match their tone, vocabulary, and sentence structure.

Consider:
- Vocabulary level and word choice
- Sentence length and complexity
- Tone (formal, casual, academic, etc.)
- Writing patterns and preferences

Return only the rewritten text, maintaining the same meaning but adapting to the user's style.`

// Metrics is a readability report for one piece of text.
type Metrics struct {
	WordCount             int     `json:"wordCount"`
	SentenceCount         int     `json:"sentenceCount"`
	AverageWordLength     float64 `json:"averageWordLength"`
	AverageSentenceLength float64 `json:"averageSentenceLength"`
	FleschReadingEase     float64 `json:"fleschReadingEase"`
	Complexity            string  `json:"complexity"`
}

// Config configures a Client.
type Config struct {
	BaseURL          string
	APIKey           string
	ProofreadModel   string
	ReadabilityModel string
	RewriteModel     string
	MaxTextBytes     int
	Timeout          time.Duration
}

// Client is an analysis service client. It is safe for concurrent use.
type Client struct {
	httpClient       *http.Client
	url              string
	apiKey           string
	proofreadModel   string
	readabilityModel string
	rewriteModel     string
	maxBytes         int
}

// NewClient builds a client. The base URL may point at any
// chat-completions-compatible endpoint.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: timeout},
		url:              strings.TrimRight(base, "/") + "/chat/completions",
		apiKey:           cfg.APIKey,
		proofreadModel:   cfg.ProofreadModel,
		readabilityModel: cfg.ReadabilityModel,
		rewriteModel:     cfg.RewriteModel,
		maxBytes:         cfg.MaxTextBytes,
	}
}

// Proofread analyzes text and returns issue spans in plain-text
// coordinates. A clean text yields an empty, non-nil slice.
func (c *Client) Proofread(ctx context.Context, text string) ([]proofread.Span, error) {
	if err := c.checkText(text); err != nil {
		return nil, err
	}
	payload, err := c.chat(ctx, c.proofreadModel, 0.1, 2000, proofreadPrompt, text)
	if err != nil {
		return nil, err
	}
	return parseSpanList(payload)
}

// Readability scores text and returns the service's metrics record.
func (c *Client) Readability(ctx context.Context, text string) (Metrics, error) {
	if err := c.checkText(text); err != nil {
		return Metrics{}, err
	}
	payload, err := c.chat(ctx, c.readabilityModel, 0.1, 500, readabilityPrompt, text)
	if err != nil {
		return Metrics{}, err
	}
	return parseMetrics(payload)
}

// Rewrite rewrites text in the style of the given writing sample.
func (c *Client) Rewrite(ctx context.Context, text, sample string) (string, error) {
	if err := c.checkText(text); err != nil {
		return "", err
	}
	if strings.TrimSpace(sample) == "" {
		return "", fmt.Errorf("analysis: empty writing sample")
	}
	user := "Writing Sample:\n" + sample + "\n\nText to Rewrite:\n" + text
	payload, err := c.chat(ctx, c.rewriteModel, 0.7, 2000, rewritePrompt, user)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(payload), nil
}

func (c *Client) checkText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if c.maxBytes > 0 && len(text) > c.maxBytes {
		return ErrTextTooLarge
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chat performs one completion round-trip and returns the raw assistant
// message content.
func (c *Client) chat(ctx context.Context, model string, temperature float64, maxTokens int, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read analysis response: %w", err)
	}

	var decoded chatResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode analysis response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return "", fmt.Errorf("analysis service status %d: %s", resp.StatusCode, msg)
	}
	if len(decoded.Choices) == 0 || decoded.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: no completion content", ErrMalformedResponse)
	}
	return decoded.Choices[0].Message.Content, nil
}
