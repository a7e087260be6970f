// Package openai wires github.com/openai/openai-go/v2's Chat
// Completions client into the llm.Provider contract, as a second
// pluggable model behind the same Router/circuit-breaker the Anthropic
// provider uses.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/infrastructure/llm"
)

func init() {
	llm.RegisterFactory("openai", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider implements llm.Provider against OpenAI's Chat Completions API.
type Provider struct {
	name   string
	apiKey string
	models []string
	sdk    sdk.Client
	logger *zap.Logger
}

// New builds an OpenAI provider from cfg.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Provider{
		name:   cfg.Name,
		apiKey: cfg.APIKey,
		models: cfg.Models,
		sdk:    sdk.NewClient(opts...),
		logger: logger.With(zap.String("provider", cfg.Name), zap.String("type", "openai")),
	}
}

var (
	_ llm.Provider      = (*Provider)(nil)
	_ service.LLMClient = (*Provider)(nil)
)

func (p *Provider) Name() string    { return p.name }
func (p *Provider) Models() []string { return p.models }

func (p *Provider) SupportsModel(model string) bool {
	if len(p.models) == 0 {
		return true
	}
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

func (p *Provider) IsAvailable(_ context.Context) bool {
	return p.apiKey != ""
}

// Generate sends one non-streaming chat-completion turn.
func (p *Provider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(req.Model),
		Messages: adaptMessages(req.Messages),
	}
	if len(req.Tools) > 0 {
		params.Tools = adaptTools(req.Tools)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(req.MaxTokens))
	}

	comp, err := p.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: chat completions: %w", err)
	}
	return responseFromCompletion(comp), nil
}

func adaptTools(tools []service.ToolDef) []sdk.ChatCompletionToolUnionParam {
	out := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		def := sdk.FunctionDefinitionParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
			Parameters:  t.Parameters,
		}
		out = append(out, sdk.ChatCompletionFunctionTool(def))
	}
	return out
}

func adaptMessages(msgs []service.LLMMessage) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, sdk.SystemMessage(m.Content))
		case "user":
			out = append(out, sdk.UserMessage(m.Content))
		case "assistant":
			if len(m.ToolCalls) == 0 {
				out = append(out, sdk.AssistantMessage(m.Content))
				continue
			}
			asst := sdk.ChatCompletionAssistantMessageParam{}
			asst.Content.OfString = sdk.String(m.Content)
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(tc.Input)
				fn := sdk.ChatCompletionMessageFunctionToolCallParam{
					ID: tc.ID,
					Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
						Arguments: string(args),
						Name:      tc.Name,
					},
				}
				asst.ToolCalls = append(asst.ToolCalls, sdk.ChatCompletionMessageToolCallUnionParam{OfFunction: &fn})
			}
			out = append(out, sdk.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		case "tool":
			out = append(out, sdk.ToolMessage(m.Content, m.ToolCallID))
		}
	}
	return out
}

func responseFromCompletion(comp *sdk.ChatCompletion) *service.LLMResponse {
	if comp == nil || len(comp.Choices) == 0 {
		return &service.LLMResponse{}
	}
	choice := comp.Choices[0]
	msg := choice.Message

	var calls []service.LLMToolCall
	for _, tc := range msg.ToolCalls {
		switch v := tc.AsAny().(type) {
		case sdk.ChatCompletionMessageFunctionToolCall:
			calls = append(calls, service.LLMToolCall{
				ID:    v.ID,
				Name:  v.Function.Name,
				Input: decodeArgs(v.Function.Arguments),
			})
		}
	}

	stopReason := "end_turn"
	if len(calls) > 0 {
		stopReason = "tool_use"
	} else if string(choice.FinishReason) == "length" {
		stopReason = "max_tokens"
	}

	return &service.LLMResponse{
		Content:    msg.Content,
		ToolCalls:  calls,
		StopReason: stopReason,
	}
}

func decodeArgs(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}
