package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goplus/trajbuild/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write a default trajbuild.yaml",
	Long:  `Init creates a trajbuild.yaml holding the default pipeline definition.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	path := filepath.Join(dir, config.Name+".yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	def := config.Default()
	if _, err := os.Stat(filepath.Join(dir, "magefile.go")); err == nil {
		def.Driver = "magefile.go"
	}
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", path)
	return nil
}
