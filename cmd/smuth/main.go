// Package main provides the smuth command-line tool.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/smuth-go/smuth/internal/evidence"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Config keys shared by flags, the config file and SMUTH_* env vars.
const (
	keyErrorRate = "evidence.base_error_rate"
	keyPValue    = "evidence.pvalue_threshold"
	keyWorkers   = "workers"
	keyVerbose   = "verbose"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if _, ok := err.(*usageError); ok {
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks errors caused by bad invocation rather than bad data.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// exactArgs is cobra.ExactArgs reporting a usageError.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{msg: err.Error()}
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile    string
		cpuProfile string
		stopProf   interface{ Stop() }
	)

	cmd := &cobra.Command{
		Use:   "smuth",
		Short: "Per-sample genotype evidence and relabeling for VCF files",
		Long: `smuth re-checks per-sample genotype calls in a multi-sample VCF.
For every sample it computes the probability that the observed alternate
reads are explained by sequencing error alone, and relabels calls that the
read evidence contradicts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(cfgFile); err != nil {
				return err
			}
			if cpuProfile != "" {
				stopProf = profile.Start(
					profile.CPUProfile,
					profile.ProfilePath(cpuProfile),
					profile.NoShutdownHook,
					profile.Quiet,
				)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if stopProf != nil {
				stopProf.Stop()
			}
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ~/.smuth.yaml)")
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.StringVar(&cpuProfile, "cpuprofile", "", "Write a CPU profile to this directory")
	_ = viper.BindPFlag(keyVerbose, pf.Lookup("verbose"))

	viper.SetDefault(keyErrorRate, evidence.DefaultBaseErrorRate)
	viper.SetDefault(keyPValue, evidence.DefaultPValueThreshold)
	viper.SetDefault(keyWorkers, 0)

	cmd.AddCommand(newRelabelCmd())
	cmd.AddCommand(newEvidenceCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// initConfig loads the config file and environment overrides.
func initConfig(cfgFile string) error {
	viper.SetEnvPrefix("SMUTH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.SetConfigFile(filepath.Join(home, ".smuth.yaml"))
	}

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return fmt.Errorf("reading config %s: %w", cfgFile, err)
		}
		// A missing default config file is fine.
		if _, statErr := os.Stat(viper.ConfigFileUsed()); statErr == nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// evidenceConfig returns the engine configuration from flags, env and file.
func evidenceConfig() evidence.Config {
	return evidence.Config{
		BaseErrorRate:   viper.GetFloat64(keyErrorRate),
		PValueThreshold: viper.GetFloat64(keyPValue),
	}
}

// newLogger builds the CLI logger; verbose switches to development output.
func newLogger() (*zap.Logger, error) {
	if viper.GetBool(keyVerbose) {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "smuth version %s (%s) built %s\n", version, commit, date)
		},
	}
}
