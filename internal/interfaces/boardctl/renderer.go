package boardctl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/robin-raq/collabboard/internal/application/roomservice"
	"github.com/robin-raq/collabboard/internal/domain/board"
)

// Renderer styles command output for the terminal.
type Renderer struct {
	glamour *glamour.TermRenderer
}

// NewRenderer builds a renderer wrapped to width columns.
func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &Renderer{glamour: r}
}

// Markdown renders md as styled terminal text, falling back to the
// raw string if glamour is unavailable.
func (r *Renderer) Markdown(md string) string {
	if r.glamour == nil {
		return md
	}
	out, err := r.glamour.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

// RoomTable renders the rooms listing.
func (r *Renderer) RoomTable(rooms []roomservice.RoomInfo) string {
	if len(rooms) == 0 {
		return lipgloss.NewStyle().Foreground(colorGray).Render("no resident rooms")
	}

	head := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	dim := lipgloss.NewStyle().Foreground(colorGray)

	var sb strings.Builder
	sb.WriteString(head.Render(fmt.Sprintf("%-24s %8s %6s %6s %8s", "ROOM", "OBJECTS", "CONNS", "DIRTY", "IDLE")))
	sb.WriteByte('\n')
	for _, room := range rooms {
		dirty := dim.Render("no")
		if room.Dirty {
			dirty = lipgloss.NewStyle().Foreground(colorYellow).Render("yes")
		}
		fmt.Fprintf(&sb, "%-24s %8d %6d %6s %7ds\n",
			room.ID, room.Objects, room.Connections, dirty, room.IdleSeconds)
	}
	return sb.String()
}

// ToolAction renders one executed action with its success marker.
func (r *Renderer) ToolAction(a board.ToolAction) string {
	icon := lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	var res struct {
		Success *bool  `json:"success"`
		Error   string `json:"error"`
	}
	if json.Unmarshal([]byte(a.Result), &res) == nil && res.Success != nil && !*res.Success {
		icon = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	}

	name := lipgloss.NewStyle().Foreground(colorCyan).Render(a.ToolName)
	return fmt.Sprintf("  %s %s %s", icon, name,
		lipgloss.NewStyle().Foreground(colorGray).Render(summarizeInput(a.Input)))
}

func summarizeInput(input map[string]interface{}) string {
	parts := make([]string, 0, 4)
	for _, key := range []string{"type", "id", "text", "x", "y", "fill"} {
		if v, ok := input[key]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", key, v))
		}
		if len(parts) == 4 {
			break
		}
	}
	return strings.Join(parts, " ")
}
