package service

import (
	"regexp"
	"strconv"
	"strings"
)

// colorMap is the 11-entry name→hex table shared by parameter
// extraction and replay.
var colorMap = map[string]string{
	"yellow": "#FFD700",
	"gold":   "#FFD700",
	"green":  "#98FB98",
	"blue":   "#87CEEB",
	"pink":   "#FFB6C1",
	"purple": "#DDA0DD",
	"orange": "#FFA07A",
	"red":    "#FF6B6B",
	"white":  "#FFFFFF",
	"gray":   "#D1D5DB",
	"grey":   "#D1D5DB",
}

var (
	hexColorRe  = regexp.MustCompile(`(?i)#[0-9a-f]{6}`)
	gridRe      = regexp.MustCompile(`(?i)(\d+)\s*x\s*(\d+)\s*grid`)
	positionRe  = regexp.MustCompile(`(?i)at\s*(?:position\s*)?\(?\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\)?`)
	saysRe      = regexp.MustCompile(`(?i)(?:says|saying)\s+(.+?)(?:[.!?]|$)`)
	withTextRe  = regexp.MustCompile(`(?i)with\s+text\s+(.+?)(?:[.!?]|$)`)
	quotedRe    = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	aboutForRe  = regexp.MustCompile(`(?i)(?:about|for)\s+(.+?)(?:[.!?]|$)`)
)

// IntentKey is a canonical command classification.
type IntentKey string

const (
	IntentGeneric         IntentKey = "generic"
	IntentCreateSticky    IntentKey = "create_sticky"
	IntentCreateRect      IntentKey = "create_rect"
	IntentCreateCircle    IntentKey = "create_circle"
	IntentCreateFrame     IntentKey = "create_frame"
	IntentCreateText      IntentKey = "create_text"
	IntentUpdateColor     IntentKey = "update_color"
	IntentTemplateRetro   IntentKey = "template_retro"
	IntentTemplateSWOT    IntentKey = "template_swot"
	IntentTemplateJourney IntentKey = "template_journey"
	IntentTemplateKanban  IntentKey = "template_kanban"
	IntentMoveObject      IntentKey = "move_object"
	IntentArrange         IntentKey = "arrange"
)

// DeriveIntentKey performs the case-insensitive pattern match that
// yields a canonical intent key, falling back to "generic" when
// nothing fires. "create_grid_{C}x{R}" is built from an NxM substring.
func DeriveIntentKey(command string) IntentKey {
	c := strings.ToLower(command)

	switch {
	case strings.Contains(c, "retro"):
		return IntentTemplateRetro
	case strings.Contains(c, "swot"):
		return IntentTemplateSWOT
	case strings.Contains(c, "journey"):
		return IntentTemplateJourney
	case strings.Contains(c, "kanban"):
		return IntentTemplateKanban
	}

	if m := gridRe.FindStringSubmatch(c); m != nil {
		return IntentKey("create_grid_" + m[1] + "x" + m[2])
	}

	switch {
	case strings.Contains(c, "move"):
		return IntentMoveObject
	case strings.Contains(c, "arrange"):
		return IntentArrange
	case strings.Contains(c, "color") || strings.Contains(c, "colour"):
		if strings.Contains(c, "change") || strings.Contains(c, "update") || strings.Contains(c, "make") || strings.Contains(c, "set") {
			return IntentUpdateColor
		}
	}

	switch {
	case strings.Contains(c, "sticky") || strings.Contains(c, "note"):
		return IntentCreateSticky
	case strings.Contains(c, "rectangle") || strings.Contains(c, "rect"):
		return IntentCreateRect
	case strings.Contains(c, "circle"):
		return IntentCreateCircle
	case strings.Contains(c, "frame"):
		return IntentCreateFrame
	case strings.Contains(c, "text") || strings.Contains(c, "label"):
		return IntentCreateText
	}

	return IntentGeneric
}

// ExtractedParams is the bag of named placeholders extraction yields.
type ExtractedParams struct {
	Color     string
	ColorHex  string
	Text      string
	X, Y      float64
	HasXY     bool
	GridCols  int
	GridRows  int
	HasGrid   bool
	Topic     string
}

// ExtractParams mines the command text for the parameters the cache's
// templatization/replay and the fallback generators both consume.
func ExtractParams(command string) ExtractedParams {
	c := strings.ToLower(command)
	var p ExtractedParams

	for name, hex := range colorMap {
		if strings.Contains(c, name) {
			p.Color = name
			p.ColorHex = hex
			break
		}
	}
	if p.ColorHex == "" {
		if m := hexColorRe.FindString(command); m != "" {
			p.ColorHex = strings.ToUpper(m)
		}
	}

	if m := saysRe.FindStringSubmatch(command); m != nil {
		p.Text = strings.TrimSpace(m[1])
	} else if m := withTextRe.FindStringSubmatch(command); m != nil {
		p.Text = strings.TrimSpace(m[1])
	} else if m := quotedRe.FindStringSubmatch(command); m != nil {
		if m[1] != "" {
			p.Text = m[1]
		} else {
			p.Text = m[2]
		}
	}

	if m := positionRe.FindStringSubmatch(command); m != nil {
		x, errX := strconv.ParseFloat(m[1], 64)
		y, errY := strconv.ParseFloat(m[2], 64)
		if errX == nil && errY == nil {
			p.X, p.Y, p.HasXY = x, y, true
		}
	}

	if m := gridRe.FindStringSubmatch(c); m != nil {
		cols, errC := strconv.Atoi(m[1])
		rows, errR := strconv.Atoi(m[2])
		if errC == nil && errR == nil {
			p.GridCols, p.GridRows, p.HasGrid = cols, rows, true
		}
	}

	if m := aboutForRe.FindStringSubmatch(command); m != nil {
		p.Topic = strings.TrimSpace(m[1])
	}

	return p
}
