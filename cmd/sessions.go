package cmd

import (
	"fmt"

	"github.com/audiolibrelab/dialmix/internal/audio"
	"github.com/audiolibrelab/dialmix/internal/mapping"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List audio sessions and the dial each one is bound to",
	Long: `List the output devices and the applications currently playing on the
default output, grouped by the dial of the active profile that would control
them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := audio.NewBackend(cfg.Audio.Backend)
		if err != nil {
			return err
		}

		devices, err := backend.ListOutputDevices()
		if err != nil {
			return fmt.Errorf("failed to list output devices: %w", err)
		}
		fmt.Printf("🔈 Output devices (%s)\n", backend.GetType())
		fmt.Printf("═══════════════════════════════════════\n")
		for _, d := range devices {
			marker := " "
			if d.Default {
				marker = "*"
			}
			fmt.Printf(" %s %s (%s)\n", marker, d.Description, d.Name)
		}

		sessions, err := backend.ListSessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		a := mapping.Match(cfg.Bindings(), sessions)

		fmt.Printf("\n🎛  Dials (profile %s, %d sessions)\n", cfg.Profile, len(sessions))
		fmt.Printf("═══════════════════════════════════════\n")
		for i, binding := range a.Bindings {
			fmt.Printf("  %d. %s [%s]\n", i+1, binding.Name, binding.Selector)
			bound := a.Bound(i)
			if len(bound) == 0 {
				fmt.Printf("       (no sessions, reported as muted)\n")
			}
			for _, b := range bound {
				fmt.Printf("       %-6d %s\n", b.Session.ProcessID(), b.Path)
			}
		}

		if len(a.Unassigned) > 0 {
			fmt.Printf("\n  Not bound to any dial:\n")
			for _, b := range a.Unassigned {
				fmt.Printf("       %-6d %s\n", b.Session.ProcessID(), b.Path)
			}
		}
		if len(a.Unresolved) > 0 {
			fmt.Printf("\n  Path unavailable:\n")
			for _, u := range a.Unresolved {
				fmt.Printf("       %-6d %v\n", u.Session.ProcessID(), u.Err)
			}
		}
		return nil
	},
}
