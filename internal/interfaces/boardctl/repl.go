package boardctl

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"
)

const helpMarkdown = `# boardctl REPL

Anything you type is sent to the server as a natural-language board
command against the current board.

| Command | Effect |
|---|---|
| ` + "`/board <id>`" + ` | Switch the target board |
| ` + "`/rooms`" + ` | List resident rooms |
| ` + "`/state`" + ` | Show the current board's objects |
| ` + "`/clearcache`" + ` | Drop every learned recipe |
| ` + "`/help`" + ` | This text |
| ` + "`/quit`" + ` | Exit |
`

// runREPL drives the interactive loop: board commands go to
// POST /api/ai, slash commands hit the admin surface.
func runREPL(client *Client) error {
	ctx := context.Background()

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}
	fmt.Println(RenderBanner(BannerInfo{
		Server:       client.baseURL,
		Rooms:        health.Rooms,
		Persistence:  health.Persistence,
		Model:        health.Model,
		CacheRecipes: health.CacheRecipes,
	}))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\001\033[1;36m\002❯\001\033[0m\002 ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	renderer := NewRenderer(0)
	boardID := "default"
	dim := lipgloss.NewStyle().Foreground(colorGray)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runSlash(ctx, client, renderer, line, &boardID); quit {
				return nil
			}
			continue
		}

		start := time.Now()
		result, err := client.Command(ctx, boardID, line)
		if err != nil {
			fmt.Println(lipgloss.NewStyle().Foreground(colorRed).Render("error: " + err.Error()))
			continue
		}
		for _, action := range result.Actions {
			fmt.Println(renderer.ToolAction(action))
		}
		suffix := fmt.Sprintf("(%s", time.Since(start).Round(time.Millisecond))
		if result.Cached {
			suffix += ", cached recipe"
		}
		suffix += ")"
		fmt.Printf("%s %s\n", result.Message, dim.Render(suffix))
	}
}

func runSlash(ctx context.Context, client *Client, renderer *Renderer, line string, boardID *string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Println(renderer.Markdown(helpMarkdown))
	case "/board":
		if len(fields) < 2 {
			fmt.Printf("current board: %s\n", *boardID)
			break
		}
		*boardID = fields[1]
		fmt.Printf("now targeting board %s\n", *boardID)
	case "/rooms":
		rooms, err := client.Rooms(ctx)
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		fmt.Println(renderer.RoomTable(rooms))
	case "/state":
		detail, err := client.Room(ctx, *boardID)
		if err != nil {
			fmt.Println("error:", err)
			break
		}
		fmt.Println(detail.State)
	case "/clearcache":
		if err := client.ClearCache(ctx); err != nil {
			fmt.Println("error:", err)
			break
		}
		fmt.Println("command cache cleared")
	default:
		fmt.Printf("unknown command %s — /help for the list\n", fields[0])
	}
	return false
}
