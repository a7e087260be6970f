package boardctl

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand builds the boardctl command tree. The --server flag
// (or COLLABBOARD_CTL_SERVER) points every subcommand at a running
// collabboard server.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("COLLABBOARD_CTL")
	v.AutomaticEnv()
	v.SetDefault("server", "http://localhost:8080")

	root := &cobra.Command{
		Use:   "boardctl",
		Short: "collabboard operator CLI",
		Long:  "boardctl inspects and operates a running collabboard server: rooms, snapshots, the command cache, and an interactive board REPL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(clientFor(v))
		},
	}
	root.PersistentFlags().String("server", v.GetString("server"), "collabboard server base URL")
	v.BindPFlag("server", root.PersistentFlags().Lookup("server"))

	rooms := &cobra.Command{Use: "rooms", Short: "Room registry operations"}
	rooms.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List resident rooms",
			RunE: func(cmd *cobra.Command, args []string) error {
				list, err := clientFor(v).Rooms(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Println(NewRenderer(0).RoomTable(list))
				return nil
			},
		},
		&cobra.Command{
			Use:   "inspect <room>",
			Short: "Show one room's objects and bookkeeping",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				detail, err := clientFor(v).Room(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Printf("room %s: %d object(s), dirty=%v\n\n%s\n", detail.ID, detail.Objects, detail.Dirty, detail.State)
				return nil
			},
		},
		&cobra.Command{
			Use:   "snapshot <room>",
			Short: "Force an immediate snapshot of one room",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := clientFor(v).Snapshot(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Printf("room %s snapshotted\n", args[0])
				return nil
			},
		},
	)
	root.AddCommand(rooms)

	cache := &cobra.Command{Use: "cache", Short: "Command cache operations"}
	cache.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every learned recipe",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFor(v).ClearCache(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("command cache cleared")
			return nil
		},
	})
	root.AddCommand(cache)

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Show server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := clientFor(v).Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("status=%s rooms=%d persistence=%s model=%s recipes=%d\n",
				h.Status, h.Rooms, h.Persistence, h.Model, h.CacheRecipes)
			return nil
		},
	})

	return root
}

func clientFor(v *viper.Viper) *Client {
	return NewClient(v.GetString("server"))
}

// Execute runs the command tree, exiting non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
