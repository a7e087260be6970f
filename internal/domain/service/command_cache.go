package service

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robin-raq/collabboard/internal/domain/board"
)

const (
	commandCacheCapacity = 50
	maxLearnActions      = 20
)

// CommandCache is a bounded, LRU-evicted set of learned recipes keyed
// by intent, one recipe per intent key. Recipes never expire on their
// own; only capacity pressure or an explicit clear removes them.
type CommandCache struct {
	mu      sync.Mutex
	recipes map[IntentKey]*board.Recipe
}

// NewCommandCache creates an empty command cache.
func NewCommandCache() *CommandCache {
	return &CommandCache{recipes: make(map[IntentKey]*board.Recipe, commandCacheCapacity)}
}

// Learn registers a successful action sequence against its derived
// intent. Generic intents and empty/too-large action sets are
// rejected. An existing recipe for the same intent only has its
// last_used bumped; first-learned wins.
func (c *CommandCache) Learn(command string, actions []board.ToolAction, response string) {
	intent := DeriveIntentKey(command)
	if intent == IntentGeneric {
		return
	}
	if len(actions) == 0 || len(actions) > maxLearnActions {
		return
	}

	params := ExtractParams(command)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.recipes[intent]; ok {
		existing.LastUsed = time.Now()
		return
	}

	if len(c.recipes) >= commandCacheCapacity {
		c.evictLRU()
	}

	templates := make([]board.ActionTemplate, 0, len(actions))
	for _, a := range actions {
		templates = append(templates, board.ActionTemplate{
			ToolName:      a.ToolName,
			InputTemplate: templatize(a.Input, params),
		})
	}

	now := time.Now()
	c.recipes[intent] = &board.Recipe{
		RecipeID:        uuid.NewString(),
		IntentKey:       string(intent),
		ActionTemplates: templates,
		ResponseTemplate: templatizeText(response, params),
		HitCount:        0,
		CreatedAt:       now,
		LastUsed:        now,
	}
}

// Match derives the command's intent and returns the matching recipe,
// bumping hit_count/last_used, or nil on a miss.
func (c *CommandCache) Match(command string) *board.Recipe {
	intent := DeriveIntentKey(command)
	if intent == IntentGeneric {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	recipe, ok := c.recipes[intent]
	if !ok {
		return nil
	}
	recipe.HitCount++
	recipe.LastUsed = time.Now()

	cp := *recipe
	cp.ActionTemplates = append([]board.ActionTemplate(nil), recipe.ActionTemplates...)
	return &cp
}

// Clear empties the cache (exposed for boardctl's "cache clear").
func (c *CommandCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recipes = make(map[IntentKey]*board.Recipe, commandCacheCapacity)
}

// Size reports the number of learned recipes.
func (c *CommandCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recipes)
}

func (c *CommandCache) evictLRU() {
	var lruKey IntentKey
	var lruTime time.Time
	for k, r := range c.recipes {
		if lruKey == "" || r.LastUsed.Before(lruTime) {
			lruKey, lruTime = k, r.LastUsed
		}
	}
	if lruKey != "" {
		delete(c.recipes, lruKey)
	}
}

// templatize replaces occurrences of extracted parameter values with
// ${paramName} placeholders, leaving non-matching fields literal.
// Extracted coordinates become ${x}/${y} only in the x and y fields.
func templatize(input map[string]interface{}, p ExtractedParams) map[string]interface{} {
	out := make(map[string]interface{}, len(input))
	for k, v := range input {
		if f, ok := v.(float64); ok && p.HasXY {
			if k == "x" && f == p.X {
				out[k] = "${x}"
				continue
			}
			if k == "y" && f == p.Y {
				out[k] = "${y}"
				continue
			}
		}
		out[k] = templatizeValue(v, p)
	}
	return out
}

func templatizeValue(v interface{}, p ExtractedParams) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	switch {
	case p.ColorHex != "" && strings.EqualFold(s, p.ColorHex):
		return "${colorHex}"
	case p.Text != "" && s == p.Text:
		return "${text}"
	case p.Topic != "" && s == p.Topic:
		return "${topic}"
	default:
		return s
	}
}

func templatizeText(text string, p ExtractedParams) string {
	out := text
	if p.Text != "" {
		out = strings.ReplaceAll(out, p.Text, "${text}")
	}
	if p.Color != "" {
		out = strings.ReplaceAll(out, p.Color, "${color}")
	}
	return out
}

// Replay extracts parameters from the new command, substitutes them
// into the recipe's templates, dispatches each action via execute,
// and re-substitutes text/color names into the response template.
func Replay(recipe *board.Recipe, command string, execute func(toolName string, input map[string]interface{}) (board.ToolAction, error)) (string, []board.ToolAction, error) {
	params := ExtractParams(command)
	if !params.HasXY {
		params.X, params.Y = 100, 100
	}
	if params.ColorHex == "" {
		params.ColorHex = "#FFD700"
	}

	actions := make([]board.ToolAction, 0, len(recipe.ActionTemplates))
	for _, tmpl := range recipe.ActionTemplates {
		input := substitutePlaceholders(tmpl.InputTemplate, params)
		action, err := execute(tmpl.ToolName, input)
		if err != nil {
			return "", actions, fmt.Errorf("command_cache: replay %s: %w", tmpl.ToolName, err)
		}
		actions = append(actions, action)
	}

	message := recipe.ResponseTemplate
	if params.Text != "" {
		message = strings.ReplaceAll(message, "${text}", params.Text)
	}
	if params.Color != "" {
		message = strings.ReplaceAll(message, "${color}", params.Color)
	}
	return message, actions, nil
}

func substitutePlaceholders(tmpl map[string]interface{}, p ExtractedParams) map[string]interface{} {
	out := make(map[string]interface{}, len(tmpl))
	// colorHex/x/y are always present (Replay defaults them); text and
	// topic may be absent from the new command, in which case their
	// placeholders stay verbatim.
	replacements := map[string]interface{}{
		"${colorHex}": p.ColorHex,
		"${x}":        p.X,
		"${y}":        p.Y,
	}
	if p.Text != "" {
		replacements["${text}"] = p.Text
	}
	if p.Topic != "" {
		replacements["${topic}"] = p.Topic
	}
	for k, v := range tmpl {
		if s, ok := v.(string); ok {
			if repl, found := replacements[s]; found {
				out[k] = repl
				continue
			}
		}
		out[k] = v
	}
	return out
}
