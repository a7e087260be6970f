package boardctl

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorCyan   = lipgloss.Color("#00D7FF")
	colorGray   = lipgloss.Color("#6C6C6C")
	colorGreen  = lipgloss.Color("#00FF87")
	colorYellow = lipgloss.Color("#FFD75F")
	colorRed    = lipgloss.Color("#FF5F5F")
)

var logoLines = []string{
	" ██████   ██████   █████  ██████  ██████   █████ ██████ ██     ",
	" ██   ██ ██    ██ ██   ██ ██   ██ ██   ██ ██       ██   ██     ",
	" ██████  ██    ██ ███████ ██████  ██   ██ ██       ██   ██     ",
	" ██   ██ ██    ██ ██   ██ ██  ██  ██   ██ ██       ██   ██     ",
	" ██████   ██████  ██   ██ ██   ██ ██████   █████   ██   ██████ ",
}

var logoGradient = []lipgloss.Color{
	lipgloss.Color("#00FFFF"),
	lipgloss.Color("#00CFFF"),
	lipgloss.Color("#009FFF"),
	lipgloss.Color("#006FFF"),
	lipgloss.Color("#5F5FFF"),
}

// BannerInfo carries the server stats shown in the REPL banner.
type BannerInfo struct {
	Server       string
	Rooms        int
	Persistence  string
	Model        string
	CacheRecipes int
}

// RenderBanner builds the REPL welcome banner.
func RenderBanner(info BannerInfo) string {
	var sb strings.Builder
	for i, line := range logoLines {
		color := logoGradient[i%len(logoGradient)]
		sb.WriteString(lipgloss.NewStyle().Foreground(color).Render(line))
		sb.WriteByte('\n')
	}

	dim := lipgloss.NewStyle().Foreground(colorGray)
	val := lipgloss.NewStyle().Foreground(colorCyan)
	sb.WriteByte('\n')
	fmt.Fprintf(&sb, "  %s %s    %s %s    %s %s\n",
		dim.Render("server:"), val.Render(info.Server),
		dim.Render("persistence:"), val.Render(info.Persistence),
		dim.Render("model:"), val.Render(orDash(info.Model)))
	fmt.Fprintf(&sb, "  %s %s    %s %s\n",
		dim.Render("rooms:"), val.Render(fmt.Sprint(info.Rooms)),
		dim.Render("recipes:"), val.Render(fmt.Sprint(info.CacheRecipes)))
	sb.WriteByte('\n')
	sb.WriteString(dim.Render("  Type a board command, /help for commands, /quit to exit."))
	return sb.String()
}

func orDash(s string) string {
	if s == "" || s == "none" {
		return "—"
	}
	return s
}
