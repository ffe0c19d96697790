package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/juststeveking/stagewatch/internal/config"
	"github.com/spf13/cobra"
)

var (
	forceRemove bool
)

var serviceRemoveCmd = &cobra.Command{
	Use:   "service:remove <name>",
	Short: "Remove a service from configuration",
	Long: `Remove a service by name from your stagewatch configuration.

Example:
  stagewatch service:remove api
  stagewatch service:remove worker --force`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Confirm removal unless --force is used
		if !forceRemove {
			fmt.Printf("Remove service '%s' and all of its stage checks? (y/N): ", name)
			reader := bufio.NewReader(os.Stdin)
			response, err := reader.ReadString('\n')
			if err != nil {
				return err
			}

			response = strings.ToLower(strings.TrimSpace(response))
			if response != "y" && response != "yes" {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := cfg.RemoveService(name); err != nil {
			return err
		}

		if err := config.SaveConfig(cfg); err != nil {
			return err
		}

		path, _ := config.GetConfigPath()
		fmt.Printf("✓ Removed service '%s' from %s\n", name, path)

		return nil
	},
}

func init() {
	serviceRemoveCmd.Flags().BoolVarP(&forceRemove, "force", "f", false, "skip confirmation prompt")
	rootCmd.AddCommand(serviceRemoveCmd)
}
