package internal

import (
	"fmt"
	"os"

	"github.com/goplus/trajbuild/internal/config"
	"github.com/goplus/trajbuild/internal/failure"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "trajbuild",
	Short: "trajbuild builds the TrajoptLib Go bridge",
	Long: `trajbuild builds TrajoptLib from source with CMake, compiles the SWIG
bridge against it and emits the static link plan for cgo.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(failure.ExitStatus(err))
	}
}

// loadConfig reads the pipeline definition from the directory named by
// args, or the working directory, and applies the log level.
func loadConfig(args []string) (*config.Config, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, failure.New(failure.Config, "load", err)
	}
	setLogLevel(cfg.Log.Level)
	return cfg, nil
}

func setLogLevel(level string) {
	if verbose {
		level = "debug"
	}
	switch level {
	case "debug":
		log.SetOutputLevel(log.Ldebug)
	case "warn":
		log.SetOutputLevel(log.Lwarn)
	case "error":
		log.SetOutputLevel(log.Lerror)
	default:
		log.SetOutputLevel(log.Linfo)
	}
}
