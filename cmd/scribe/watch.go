package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/scribe/internal/model"
)

var (
	watchAddProject   string
	watchAddDeveloper string
	watchAddFull      bool
	watchAddStart     bool
	watchListActive   bool
)

func init() {
	watchAddCmd.Flags().StringVar(&watchAddProject, "project", "", "project name for conversations found here")
	watchAddCmd.Flags().StringVar(&watchAddDeveloper, "developer", "", "developer username for conversations found here")
	watchAddCmd.Flags().BoolVar(&watchAddFull, "full", false, "always parse files in full")
	watchAddCmd.Flags().BoolVar(&watchAddStart, "start", true, "start watching immediately")
	watchListCmd.Flags().BoolVar(&watchListActive, "active", false, "only active configs")

	watchCmd.AddCommand(watchAddCmd, watchListCmd, watchStartCmd, watchStopCmd, watchRemoveCmd)
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage stored directories that scribe serve polls",
}

var watchAddCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Store a directory to watch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		db, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer db.close()

		created, err := db.CreateWatchConfig(cmd.Context(), model.WatchConfig{
			Directory:         dir,
			ProjectName:       watchAddProject,
			DeveloperUsername: watchAddDeveloper,
			EnableIncremental: !watchAddFull,
		})
		if err != nil {
			return err
		}
		if watchAddStart {
			if _, err := db.SetWatchConfigActive(cmd.Context(), created.ID, true); err != nil {
				return err
			}
		}
		fmt.Printf("%s  %s\n", created.ID, created.Directory)
		return nil
	},
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored watch directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer db.close()

		configs, err := db.ListWatchConfigs(cmd.Context(), watchListActive)
		if err != nil {
			return err
		}
		if len(configs) == 0 {
			fmt.Println("No watch directories stored")
			return nil
		}
		fmt.Printf("%-36s  %-7s %-12s %s\n", "ID", "ACTIVE", "PROJECT", "DIRECTORY")
		for _, c := range configs {
			fmt.Printf("%-36s  %-7t %-12s %s\n", c.ID, c.Active, c.ProjectName, c.Directory)
		}
		return nil
	},
}

var watchStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Resume polling a stored directory",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setWatchActive(cmd, args[0], true) },
}

var watchStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Pause polling a stored directory",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setWatchActive(cmd, args[0], false) },
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a stopped watch directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}
		db, err := openBackend(cmd.Context())
		if err != nil {
			return err
		}
		defer db.close()
		return db.DeleteWatchConfig(cmd.Context(), id)
	},
}

func setWatchActive(cmd *cobra.Command, arg string, active bool) error {
	id, err := uuid.Parse(arg)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", arg, err)
	}
	db, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer db.close()

	c, err := db.SetWatchConfigActive(cmd.Context(), id, active)
	if err != nil {
		return err
	}
	if c == nil {
		return model.ErrWatchConfigNotFound
	}
	fmt.Printf("%s  active=%t  %s\n", c.ID, c.Active, c.Directory)
	return nil
}
