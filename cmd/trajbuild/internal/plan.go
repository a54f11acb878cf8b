package internal

import (
	"fmt"
	"io"
	"runtime"

	"github.com/goplus/trajbuild/internal/pipeline"
	"github.com/spf13/cobra"
)

var planGOOS string

var planCmd = &cobra.Command{
	Use:   "plan [dir]",
	Short: "Show the tracked inputs and the link plan without building",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planGOOS, "goos", runtime.GOOS, "Platform to plan for")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	opts := pipeline.DefaultOptions()
	opts.GOOS = planGOOS
	p, err := pipeline.Plan(cfg, opts)
	if err != nil {
		return err
	}
	return printPreview(cmd.OutOrStdout(), p)
}

func printPreview(w io.Writer, p *pipeline.Preview) error {
	fmt.Fprintf(w, "# toolchain %s\n", p.Toolchain.GOOS)
	fmt.Fprintf(w, "# cmake %v\n", p.Configure)
	fmt.Fprintf(w, "# bridge %s\n", p.Artifact.Path)
	fmt.Fprintf(w, "# cgo file %s\n", p.CgoFile)
	if err := p.Plan.Emit(w); err != nil {
		return err
	}
	return p.Inputs.Emit(w)
}
