package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/config"
	"github.com/danieldekerlegandevolve/sound-designer-sub002/engine"
	"github.com/danieldekerlegandevolve/sound-designer-sub002/midi"
)

var (
	inPortName  string
	outPortName string
	arpEnabled  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the engine between a MIDI input and output port",
	Long: `Open the configured MIDI ports and process events until interrupted.

Port names match by substring, so "--in arturia" finds
"Arturia KeyStep 32". Flags override the saved configuration.

Example:
  sound-designer run --in keystep --out fluid --arp`,
	RunE: runEngine,
}

func init() {
	runCmd.Flags().StringVar(&inPortName, "in", "", "MIDI input port (substring match)")
	runCmd.Flags().StringVar(&outPortName, "out", "", "MIDI output port (substring match)")
	runCmd.Flags().BoolVar(&arpEnabled, "arp", false, "Start with the arpeggiator enabled")
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if inPortName == "" {
		inPortName = cfg.Ports.Input
	}
	if outPortName == "" {
		outPortName = cfg.Ports.Output
	}
	if inPortName == "" {
		return fmt.Errorf("no input port configured; pass --in or set ports.input in the config")
	}

	bridge, err := midi.NewBridge(inPortName, outPortName, log)
	if err != nil {
		return err
	}
	defer bridge.Close()

	proc := engine.NewProcessor(
		engine.WithLogger(log),
		engine.WithArpConfig(cfg.Arpeggiator),
		engine.WithMPEConfig(cfg.MPE),
		engine.WithNoteEffects(cfg.NoteEffects),
	)
	proc.Arpeggiator().SetEnabled(arpEnabled)

	proc.Emitter().SubscribeNotes(bridge.SendNote)
	proc.Emitter().SubscribeCC(bridge.SendCC)
	proc.Emitter().SubscribeParameters(func(id string, value float64) {
		log.Info("parameter", zap.String("target", id), zap.Float64("value", value))
	})

	if err := bridge.Listen(proc.Handle); err != nil {
		return err
	}
	log.Info("engine running",
		zap.String("in", inPortName),
		zap.String("out", outPortName),
		zap.Bool("arp", arpEnabled))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	proc.Panic()
	log.Info("shutting down")
	return nil
}
