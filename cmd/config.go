package cmd

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/dialmix/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and manage dialmix configuration settings.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration of the selected profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every profile of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := config.ValidateConfigurationFormat(cfgFile)
		if err != nil {
			return err
		}

		fmt.Printf("✅ %s is valid\n", cfgFile)
		for _, name := range config.ProfileNames(root) {
			marker := " "
			if name == root.ActiveProfile {
				marker = "*"
			}
			fmt.Printf(" %s %s (%d dials)\n", marker, name, len(root.Profiles[name].Dials))
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(cfgFile); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", cfgFile)
		return nil
	},
}

var configUseCmd = &cobra.Command{
	Use:   "use <profile>",
	Short: "Set the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UpdateActiveProfile(cfgFile, args[0]); err != nil {
			return err
		}
		fmt.Printf("Active profile is now %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configUseCmd)
}
