//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package chat wraps an OpenAI-compatible chat completions API for grounded
// question answering over retrieved document context, with localized system
// prompts.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"

	"trpc.group/trpc-go/trpc-assistant-go/log"
)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "deepseek-chat"
	// DeepSeekBaseURL points the OpenAI-compatible client at DeepSeek.
	DeepSeekBaseURL = "https://api.deepseek.com/v1"

	// DefaultTemperature is the sampling temperature for answers.
	DefaultTemperature = 0.7
	// DefaultMaxTokens caps the answer length.
	DefaultMaxTokens = 1000

	// defaultChannelBufferSize is the stream channel buffer size.
	defaultChannelBufferSize = 256
)

// ErrEmptyQuestion is returned when the request question is missing or blank.
var ErrEmptyQuestion = errors.New("question is required")

// PromptInput carries everything the system prompt depends on. FileName set
// means the conversation is about an uploaded document; otherwise the prompt
// describes the configured vehicle.
type PromptInput struct {
	Language     Language
	FileName     string
	VehicleModel string
	VehicleYear  string
	Context      string
}

// BuildSystemPrompt renders the localized system prompt, appending retrieved
// context when present.
func BuildSystemPrompt(in PromptInput) string {
	set := promptsFor(in.Language)

	var b strings.Builder
	if in.FileName != "" {
		fmt.Fprintf(&b, set.document, in.FileName)
	} else {
		year := in.VehicleYear
		if year == "" {
			year = "2024"
		}
		model := in.VehicleModel
		if model == "" {
			model = "Cadillac"
		}
		fmt.Fprintf(&b, set.vehicle, year, model)
	}

	if in.Context != "" {
		intro := set.manualIntro
		if in.FileName != "" {
			intro = set.documentIntro
		}
		b.WriteString("\n\n")
		b.WriteString(intro)
		b.WriteString("\n")
		b.WriteString(in.Context)
	}
	return b.String()
}

// Attribution renders the localized "Using information from ..." prefix shown
// before answers grounded in an uploaded document.
func Attribution(lang Language, fileName string) string {
	return fmt.Sprintf(promptsFor(lang).attribution, fileName) + "\n\n"
}

// ErrorMessage returns the localized canned message for a failed chat call.
func ErrorMessage(lang Language) string {
	return promptsFor(lang).errorMessage
}

// StreamErrorNotice returns the localized message pushed into a stream that
// fails mid-flight.
func StreamErrorNotice(lang Language) string {
	return promptsFor(lang).streamErrorNotice
}

// Request is one chat completion call.
type Request struct {
	// System is the system prompt, typically from BuildSystemPrompt.
	System string
	// Question is the user's question. Required.
	Question string
}

// Response is the assistant's answer.
type Response struct {
	Content string
	Model   string
}

// Chunk is one piece of a streamed answer. Err is set at most once, on the
// final chunk before the channel closes.
type Chunk struct {
	Content string
	Done    bool
	Err     error
}

type options struct {
	model             string
	apiKey            string
	baseURL           string
	temperature       float64
	maxTokens         int64
	channelBufferSize int
	openaiOptions     []openaiopt.RequestOption
}

// Option configures the chat client.
type Option func(*options)

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *options) {
		o.apiKey = key
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint, e.g.
// DeepSeekBaseURL.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *options) {
		o.temperature = t
	}
}

// WithMaxTokens caps the answer length.
func WithMaxTokens(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithChannelBufferSize sets the stream channel buffer size.
func WithChannelBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.channelBufferSize = n
		}
	}
}

// WithRequestOptions passes additional request options to the underlying
// client. Useful for testing with a custom HTTP client.
func WithRequestOptions(opts ...openaiopt.RequestOption) Option {
	return func(o *options) {
		o.openaiOptions = append(o.openaiOptions, opts...)
	}
}

// Client calls an OpenAI-compatible chat completions API.
type Client struct {
	client            openai.Client
	model             string
	temperature       float64
	maxTokens         int64
	channelBufferSize int
}

// New creates a chat client.
func New(opts ...Option) *Client {
	o := &options{
		model:             DefaultModel,
		temperature:       DefaultTemperature,
		maxTokens:         DefaultMaxTokens,
		channelBufferSize: defaultChannelBufferSize,
	}
	for _, opt := range opts {
		opt(o)
	}

	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	clientOpts = append(clientOpts, o.openaiOptions...)

	return &Client{
		client:            openai.NewClient(clientOpts...),
		model:             o.model,
		temperature:       o.temperature,
		maxTokens:         o.maxTokens,
		channelBufferSize: o.channelBufferSize,
	}
}

func (c *Client) params(req *Request) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Question))

	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	}
}

// Chat sends one completion request and returns the full answer.
func (c *Client) Chat(ctx context.Context, req *Request) (*Response, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	completion, err := c.client.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}
	return &Response{
		Content: completion.Choices[0].Message.Content,
		Model:   completion.Model,
	}, nil
}

// ChatStream sends one completion request and streams the answer as it is
// generated. The returned channel is closed after the final chunk; a stream
// error is delivered on the last chunk rather than dropped.
func (c *Client) ChatStream(ctx context.Context, req *Request) (<-chan *Chunk, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	chunks := make(chan *Chunk, c.channelBufferSize)
	go c.streamCompletion(ctx, c.params(req), chunks)
	return chunks, nil
}

func (c *Client) streamCompletion(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	chunks chan<- *Chunk,
) {
	defer close(chunks)

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		select {
		case chunks <- &Chunk{Content: chunk.Choices[0].Delta.Content}:
		case <-ctx.Done():
			return
		}
	}

	if err := stream.Err(); err != nil {
		log.Warnf("chat stream failed: %v", err)
		select {
		case chunks <- &Chunk{Done: true, Err: err}:
		case <-ctx.Done():
		}
		return
	}

	select {
	case chunks <- &Chunk{Done: true}:
	case <-ctx.Done():
	}
}
