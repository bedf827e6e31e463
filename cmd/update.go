package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/ffview/internal/systemd"
	"github.com/smazurov/ffview/internal/updater"
)

// CreateUpdateCmd creates the update command.
func CreateUpdateCmd() *cobra.Command {
	var (
		format      string
		repository  string
		restartUnit string
		check       bool
		prerelease  bool
		rollback    bool
		system      bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update ffview to the latest release",
		Long: `Replaces the ffview binary with the latest GitHub release. The previous
binary is kept as a backup and can be restored with --rollback. With
--restart-unit the systemd unit running ffview is restarted afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if check && rollback {
				return errors.New("--check and --rollback are mutually exclusive")
			}
			if check && restartUnit != "" {
				return errors.New("--restart-unit has no effect with --check")
			}

			u, err := updater.New(updater.Options{
				Repository: repository,
				Prerelease: prerelease,
			})
			if err != nil {
				return err
			}

			if rollback {
				restored, err := u.Rollback()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %s\n", restored)
				return restart(cmd, restartUnit, system)
			}

			var info *updater.UpdateInfo
			if check {
				info, err = u.Check(cmd.Context())
			} else {
				info, err = u.Apply(cmd.Context())
				if errors.Is(err, &updater.Error{Code: updater.ErrCodeNoUpdate}) {
					err = nil
				}
			}
			if err != nil {
				return err
			}
			if err := writeUpdateInfo(cmd, format, info); err != nil {
				return err
			}
			if info.Applied {
				return restart(cmd, restartUnit, system)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", FormatTable, "Output format (table, json, yaml)")
	cmd.Flags().StringVar(&repository, "repo", updater.DefaultRepository, "GitHub repository to update from")
	cmd.Flags().BoolVar(&check, "check", false, "Only check for a newer release")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Include prereleases")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the binary replaced by the last update")
	cmd.Flags().StringVar(&restartUnit, "restart-unit", "", "systemd unit to restart after updating, e.g. ffview")
	cmd.Flags().BoolVar(&system, "system", false, "Use the system instance of systemd instead of the user instance")
	return cmd
}

func writeUpdateInfo(cmd *cobra.Command, format string, info *updater.UpdateInfo) error {
	return writeOutput(cmd.OutOrStdout(), format, info, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Current\t%s\n", info.CurrentVersion)
		fmt.Fprintf(tw, "Latest\t%s\n", info.LatestVersion)
		switch {
		case info.Applied:
			fmt.Fprintln(tw, "Status\tupdated, restart ffview to use it")
		case info.UpdateAvailable:
			fmt.Fprintln(tw, "Status\tupdate available")
		default:
			fmt.Fprintln(tw, "Status\tup to date")
		}
		if !info.PublishedAt.IsZero() {
			fmt.Fprintf(tw, "Published\t%s\n", info.PublishedAt.Format(time.DateOnly))
		}
		if info.ReleaseURL != "" {
			fmt.Fprintf(tw, "URL\t%s\n", info.ReleaseURL)
		}
	})
}

// restart restarts unit when one was given.
func restart(cmd *cobra.Command, unit string, system bool) error {
	if unit == "" {
		return nil
	}
	m, err := systemd.NewManager(cmd.Context(), system)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Restart(cmd.Context(), unit); err != nil {
		return fmt.Errorf("failed to restart %s: %w", systemd.UnitName(unit), err)
	}
	state, err := m.ActiveState(cmd.Context(), unit)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restarted %s (%s)\n", systemd.UnitName(unit), state)
	return nil
}
