package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sound-designer",
	Short: "A real-time MIDI performance processor",
	Long: `sound-designer sits between a MIDI controller and a synth and reshapes
the performance in real time: arpeggiation, MPE voice management, CC
automation lanes, MIDI-learn parameter mapping and note effects.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// newLogger builds the process logger. Verbose runs switch to the
// development encoder so debug output is readable on a terminal.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
