package internal

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goplus/trajbuild/internal/config"
	"github.com/goplus/trajbuild/internal/pipeline"
	"github.com/goplus/trajbuild/internal/tracking"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Run the pipeline and re-run it whenever a tracked input changes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pipeline.DefaultOptions()
	opts.Stdout = cmd.OutOrStdout()
	build := func(ctx context.Context) {
		if _, err := pipeline.Run(ctx, cfg, opts); err != nil {
			log.Errorf("%v", err)
		}
	}
	build(ctx)

	inputs := tracking.Inputs(cfg)
	log.Infof("watching %d inputs", len(inputs))
	return tracking.Watch(ctx, inputs, func(changed []string) {
		log.Infof("changed: %s", strings.Join(changed, ", "))
		// The definition file may itself have changed.
		next, err := config.Load(cfg.Dir)
		if err != nil {
			log.Errorf("%v", err)
			return
		}
		cfg = next
		build(ctx)
	})
}
