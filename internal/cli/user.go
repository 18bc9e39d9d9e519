package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func requireUser(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "user ID (Clerk subject)")
	_ = cmd.MarkFlagRequired("user")
}

// NewCheckCommand runs one unlock pass for a user.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Unlock every achievement a user now qualifies for",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")

			app, err := loadApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			newly, err := app.Achievements.RunCheck(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, map[string]any{"newlyUnlocked": newly})
			}
			if len(newly) == 0 {
				fmt.Fprintln(out, "no new achievements")
				return nil
			}
			for _, n := range newly {
				fmt.Fprintf(out, "unlocked %s (%s) +%d\n", n.Name, n.ID, n.Points)
			}
			return nil
		},
	}
	requireUser(cmd)
	return cmd
}

func NewLevelCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "level",
		Short: "Show a user's points and level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")

			app, err := loadApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			info, err := app.Achievements.GetLevelInfo(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, info)
			}
			fmt.Fprintf(out, "level %d %s, %d points", info.Level, info.Title, info.TotalPoints)
			if info.NextLevel != nil {
				fmt.Fprintf(out, ", %.0f%% to %s", info.ProgressPct, info.NextLevel.Title)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	requireUser(cmd)
	return cmd
}

// NewReconcileCommand credits points missing for achievements a user already
// holds.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Credit points missing for a user's recorded unlocks",
		Long: `Compare the points a user should hold for their recorded achievements
with their stored total and credit the difference. Totals are never lowered.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user")

			app, err := loadApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			credited, err := app.Achievements.Reconcile(cmd.Context(), userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, map[string]int{"credited": credited})
			}
			fmt.Fprintf(out, "credited %d points\n", credited)
			return nil
		},
	}
	requireUser(cmd)
	return cmd
}
