package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ykvlv/sobre/internal/app"
	"github.com/ykvlv/sobre/internal/reminder"
)

const timeLayout = "2006-01-02 15:04 MST"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the push API and reminder dispatcher",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx)
			})
		},
	}
}

func newLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "launch",
		Short: "Run the app foreground hooks once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				rep, err := a.Launch(ctx)
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "pending: %s\n", rep.Pending)
				if rep.Route != "" {
					_, _ = fmt.Fprintf(out, "route: %s\n", rep.Route)
				}
				printOutcome(cmd, rep.Reminder)
				return err
			})
		},
	}
}

func newCheckInCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkin",
		Short: "Check in and unlock apps until the next reset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				until, err := a.CheckIn(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "unlocked until %s\n", until.Format(timeLayout))
				return nil
			})
		},
	}
}

func newSettingsCmd() *cobra.Command {
	settings := &cobra.Command{Use: "settings", Short: "Daily blocking settings"}

	settings.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show settings and block state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				st, err := a.Status(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "daily enabled: %t\nreset time: %s\n", st.Settings.DailyEnabled, st.Settings.DailyResetTime)
				if st.State.DailyUnlockedUntil > 0 {
					_, _ = fmt.Fprintf(out, "unlocked until: %s\n", time.Unix(st.State.DailyUnlockedUntil, 0).Format(timeLayout))
				}
				_, _ = fmt.Fprintf(out, "emergency: %t\nshields engaged: %t\n", st.State.EmergencyActive, st.Engaged)
				if st.Reminder != "" {
					_, _ = fmt.Fprintf(out, "reminder: %s\n", st.Reminder)
				}
				return nil
			})
		},
	})

	var enabled bool
	var resetTime string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change daily blocking settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var en *bool
			var rt *string
			if cmd.Flags().Changed("enabled") {
				en = &enabled
			}
			if cmd.Flags().Changed("reset-time") {
				rt = &resetTime
			}
			if en == nil && rt == nil {
				return fmt.Errorf("nothing to set: pass --enabled or --reset-time")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.UpdateSettings(ctx, en, rt)
			})
		},
	}
	set.Flags().BoolVar(&enabled, "enabled", false, "enable daily blocking")
	set.Flags().StringVar(&resetTime, "reset-time", "", "daily reset time, HH:mm")
	settings.AddCommand(set)
	return settings
}

func newEmergencyCmd() *cobra.Command {
	emergency := &cobra.Command{Use: "emergency", Short: "Emergency unlock"}

	var d time.Duration
	start := &cobra.Command{
		Use:   "start",
		Short: "Lift the shields now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if d < 0 {
				return fmt.Errorf("--for must not be negative")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.StartEmergency(ctx, d)
			})
		},
	}
	start.Flags().DurationVar(&d, "for", 0, "how long to stay unlocked (0 = until ended)")

	end := &cobra.Command{
		Use:   "end",
		Short: "End the emergency unlock",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.EndEmergency(ctx)
			})
		},
	}

	emergency.AddCommand(start, end)
	return emergency
}

func newReminderCmd() *cobra.Command {
	rem := &cobra.Command{Use: "reminder", Short: "Daily reset reminder"}

	var request bool
	ensure := &cobra.Command{
		Use:   "ensure",
		Short: "Replace the reminder with one for the next reset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out, err := a.EnsureReminder(ctx, request)
				if err != nil {
					return err
				}
				printOutcome(cmd, out)
				return nil
			})
		},
	}
	ensure.Flags().BoolVar(&request, "request-permission", false, "prompt for notification permission if undetermined")
	rem.AddCommand(ensure)
	return rem
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <url>",
		Short: "Open a deep link such as sobre://daily-reset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				route, err := a.OpenURL(ctx, args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "route: %s\n", route)
				return nil
			})
		},
	}
}

func newShieldCmd() *cobra.Command {
	shield := &cobra.Command{Use: "shield", Short: "Shield extension actions"}
	shield.AddCommand(&cobra.Command{
		Use:   "tap",
		Short: "Record a tap on the shield's check-in button",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.RecordShieldTap(ctx)
			})
		},
	})
	return shield
}

func newDeviceCmd() *cobra.Command {
	device := &cobra.Command{Use: "device", Short: "Push target for this device"}
	device.AddCommand(&cobra.Command{
		Use:   "register <provider> <token>",
		Short: "Register where reminders are pushed (expo|telegram)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.RegisterDevice(ctx, args[0], args[1])
			})
		},
	})
	return device
}

func newPermissionCmd() *cobra.Command {
	perm := &cobra.Command{Use: "permission", Short: "Notification permission"}
	perm.AddCommand(&cobra.Command{
		Use:   "set <undetermined|granted|denied>",
		Short: "Override the stored notification permission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.SetPermission(ctx, args[0])
			})
		},
	})
	return perm
}

func printOutcome(cmd *cobra.Command, o reminder.Outcome) {
	out := cmd.OutOrStdout()
	switch {
	case o.Skipped != "":
		_, _ = fmt.Fprintf(out, "reminder skipped: %s\n", o.Skipped)
	case o.Scheduled:
		_, _ = fmt.Fprintf(out, "reminder %s at %s\n", o.NotificationID, o.FireAt.Format(timeLayout))
		if o.UsedDefault {
			_, _ = fmt.Fprintln(out, "reset time unreadable, used 08:00")
		}
	}
}
