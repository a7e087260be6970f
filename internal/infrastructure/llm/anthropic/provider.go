// Package anthropic wires the github.com/anthropics/anthropic-sdk-go
// client into the llm.Provider contract.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/robin-raq/collabboard/internal/domain/service"
	"github.com/robin-raq/collabboard/internal/infrastructure/llm"
)

func init() {
	llm.RegisterFactory("anthropic", func(cfg llm.ProviderConfig, logger *zap.Logger) llm.Provider {
		return New(cfg, logger)
	})
}

// Provider implements llm.Provider against the Anthropic Messages API
// via the official SDK.
type Provider struct {
	name    string
	apiKey  string
	models  []string
	sdk     anthropicsdk.Client
	logger  *zap.Logger
}

// New builds an Anthropic provider from cfg.
func New(cfg llm.ProviderConfig, logger *zap.Logger) *Provider {
	opts := []option.RequestOption{option.WithAPIKey(strings.TrimSpace(cfg.APIKey))}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}
	return &Provider{
		name:   cfg.Name,
		apiKey: cfg.APIKey,
		models: cfg.Models,
		sdk:    anthropicsdk.NewClient(opts...),
		logger: logger.With(zap.String("provider", cfg.Name), zap.String("type", "anthropic")),
	}
}

var (
	_ llm.Provider       = (*Provider)(nil)
	_ service.LLMClient  = (*Provider)(nil)
)

func (p *Provider) Name() string    { return p.name }
func (p *Provider) Models() []string { return p.models }

// SupportsModel reports true for any model when the config lists none,
// otherwise requires an exact match against the configured list.
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

// IsAvailable reports whether an API key is configured; no network
// call is made to check liveness.
func (p *Provider) IsAvailable(_ context.Context) bool {
	return p.apiKey != ""
}

// Generate sends one non-streaming turn: the orchestrator's model loop
// only needs request/response per turn, never token-level deltas, so
// each turn is a plain request/response; nothing here streams tokens.
func (p *Provider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	system, messages, err := adaptMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: adapt messages: %w", err)
	}
	tools, err := adaptTools(req.Tools)
	if err != nil {
		return nil, fmt.Errorf("anthropic: adapt tools: %w", err)
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  messages,
		System:    system,
		Tools:     tools,
		MaxTokens: maxTokens,
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return responseFromMessage(resp), nil
}

func adaptMessages(msgs []service.LLMMessage) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam, error) {
	var system []anthropicsdk.TextBlockParam
	out := make([]anthropicsdk.MessageParam, 0, len(msgs))

	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case "system":
			if strings.TrimSpace(m.Content) != "" {
				system = append(system, anthropicsdk.TextBlockParam{Text: m.Content})
			}
		case "user":
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		case "assistant":
			var blocks []anthropicsdk.ContentBlockParamUnion
			if strings.TrimSpace(m.Content) != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(tc.ID, inputAsAny(tc.Input), tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropicsdk.NewAssistantMessage(blocks...))
			}
		case "tool":
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			return nil, nil, fmt.Errorf("unsupported role %q", m.Role)
		}
	}
	return system, out, nil
}

func inputAsAny(m map[string]interface{}) any {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func adaptTools(tools []service.ToolDef) ([]anthropicsdk.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	out := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool name required")
		}
		schema := anthropicsdk.ToolInputSchemaParam{}
		if props, ok := t.Parameters["properties"]; ok {
			schema.Properties = props
		}
		if req, ok := t.Parameters["required"].([]string); ok {
			schema.Required = req
		}
		param := anthropicsdk.ToolParam{
			Name:        t.Name,
			InputSchema: schema,
		}
		if t.Description != "" {
			param.Description = anthropicsdk.String(t.Description)
		}
		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &param})
	}
	return out, nil
}

func responseFromMessage(resp *anthropicsdk.Message) *service.LLMResponse {
	if resp == nil {
		return &service.LLMResponse{}
	}
	var sb strings.Builder
	var calls []service.LLMToolCall

	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			sb.WriteString(v.Text)
		case anthropicsdk.ToolUseBlock:
			calls = append(calls, service.LLMToolCall{
				ID:    v.ID,
				Name:  v.Name,
				Input: decodeToolInput(v.Input),
			})
		}
	}

	stopReason := "end_turn"
	if len(calls) > 0 {
		stopReason = "tool_use"
	}
	if string(resp.StopReason) == "max_tokens" {
		stopReason = "max_tokens"
	}

	return &service.LLMResponse{
		Content:    sb.String(),
		ToolCalls:  calls,
		StopReason: stopReason,
	}
}

func decodeToolInput(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}
