package cmd

import (
	"fmt"

	"github.com/audiolibrelab/dialmix/internal/wire"

	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := wire.ListSerialPorts()
		if err != nil {
			return err
		}

		fmt.Printf("📋 SERIAL PORTS (%d found):\n", len(ports))
		for i, p := range ports {
			fmt.Printf("  %d. %s\n", i+1, p)
		}
		if len(ports) == 0 {
			fmt.Printf("\n💡 Default when serial.path is not set: %s\n", wire.DefaultSerialPath())
		}
		return nil
	},
}
