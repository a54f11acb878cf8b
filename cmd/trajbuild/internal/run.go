package internal

import (
	"github.com/goplus/trajbuild/internal/pipeline"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [dir]",
	Short: "Build the native library and the bridge, then emit the link plan",
	Long: `Run builds TrajoptLib, compiles the bridge if any tracked input changed
and prints the link directives. Configuration is read from trajbuild.yaml
in dir, or the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	opts := pipeline.DefaultOptions()
	opts.Stdout = cmd.OutOrStdout()
	_, err = pipeline.Run(cmd.Context(), cfg, opts)
	return err
}
