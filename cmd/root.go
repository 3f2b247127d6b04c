package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/servers"
)

var (
	instanceDir string
	configFile  string
	serversFile string
	verbose     bool
	logFile     string

	loader *config.Loader
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "mmmmm",
	Short:         "Sync mods and config from a server to clients",
	Long:          "Publish a server's mods and config as bundles, serve them over HTTP, and keep client instances in sync with checksum-tracked updates.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.SetVerbose(verbose)
		if err := logging.SetOutputFile(logFile); err != nil {
			return fmt.Errorf("opening log file %q: %w", logFile, err)
		}

		loader = config.NewLoader(instanceDir, configFile)
		loaded, err := loader.Load()
		if err != nil {
			return err
		}
		cfg = loaded
		if f := loader.ConfigFile(); f != "" {
			logging.Debugf("Verbose: using config file %s\n", f)
		}
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if closeErr := logging.Close(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Error closing log file: %v\n", closeErr)
		err = errors.Join(err, closeErr)
	}
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if isUsageError(err) {
		printUsageFor(args)
	}
	return 1
}

// printUsageFor shows the usage of the deepest command named by args.
func printUsageFor(args []string) {
	target := rootCmd
	if found, _, err := rootCmd.Find(args); err == nil && found != nil {
		target = found
	}
	_ = target.Usage()
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return wrapUsageError(err)
	})

	rootCmd.PersistentFlags().StringVarP(&instanceDir, "instance-dir", "d", ".", "Minecraft instance root directory")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: mmmmm.yaml in the instance dir)")
	rootCmd.PersistentFlags().StringVar(&serversFile, "servers-file", "", "Server registry file (default: ~/.config/mmmmm/servers.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write command output to a log file")
}

func openRegistry() (*servers.Registry, error) {
	path := serversFile
	if path == "" {
		path = servers.DefaultPath()
	}
	return servers.Open(path, cfg.Server.Port)
}

// usageError marks errors caused by bad arguments or flags; Execute prints
// the command usage after them.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func wrapUsageError(err error) error {
	if err == nil {
		return nil
	}
	return &usageError{err: err}
}

// usageArgs wraps a cobra validator so its failures count as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	if validate == nil {
		return nil
	}
	return func(cmd *cobra.Command, args []string) error {
		return wrapUsageError(validate(cmd, args))
	}
}

func isUsageError(err error) bool {
	if ue := (*usageError)(nil); errors.As(err, &ue) {
		return true
	}
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command ") || strings.HasPrefix(msg, "unknown flag: ")
}
