package board

import "time"

// ActionTemplate is one step of a learned recipe: a tool call whose
// input values may contain "${paramName}" placeholders.
type ActionTemplate struct {
	ToolName      string                 `json:"tool_name"`
	InputTemplate map[string]interface{} `json:"input_template"`
}

// Recipe is a learned intent -> action-sequence template.
type Recipe struct {
	RecipeID         string           `json:"recipe_id"`
	IntentKey        string           `json:"intent_key"`
	ActionTemplates  []ActionTemplate `json:"action_templates"`
	ResponseTemplate string           `json:"response_template"`
	HitCount         int              `json:"hit_count"`
	CreatedAt        time.Time        `json:"created_at"`
	LastUsed         time.Time        `json:"last_used"`
}

// ToolAction records one executed tool call, shared between the
// pipeline, the stream protocol, and cache learning.
type ToolAction struct {
	ToolName string                 `json:"tool_name"`
	Input    map[string]interface{} `json:"input"`
	Result   string                 `json:"result"` // serialized JSON
}
