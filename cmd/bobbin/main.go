// Command bobbin compiles embroidery designs from the command line.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/bobbin/pkg/config"
)

// cli carries the state shared by every subcommand once the persistent
// flags have been read.
type cli struct {
	configPath string
	verbose    bool

	cfg config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "bobbin",
		Short: "Compile embroidery designs into machine files",
		Long: `bobbin turns a design into an ordered stitch program and writes it
in machine formats (DST, PES, PEC, JEF, EXP, VP3, HUS, XXX).

A design is either a DSL program (.lisp, .bob) or a saved scene (.json).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "JSON config file")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "development logging at debug level")

	rootCmd.AddCommand(
		c.exportCmd(),
		c.validateCmd(),
		c.metricsCmd(),
		c.timelineCmd(),
		c.paletteCmd(),
		c.svgCmd(),
		c.formatsCmd(),
	)
	return rootCmd
}

// setup loads the config file, applies BOBBIN_* environment overrides and
// builds the logger.
func (c *cli) setup() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	cfg, err = cfg.EnvOverlay(os.Environ())
	if err != nil {
		return err
	}
	log, err := cfg.Logger(c.verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	c.cfg = cfg
	c.log = log
	return nil
}
