package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/config"
	"github.com/danieldekerlegandevolve/sound-designer-sub002/engine"
	"github.com/danieldekerlegandevolve/sound-designer-sub002/midi"
	"github.com/danieldekerlegandevolve/sound-designer-sub002/theme"
	"github.com/danieldekerlegandevolve/sound-designer-sub002/tui"
)

var monitorPortName string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch raw MIDI traffic on an input port",
	Long: `Open a MIDI input port and show every decoded message in a live view.

No processing happens: notes are not arpeggiated or forwarded, the
traffic is only logged.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorPortName, "in", "", "MIDI input port (substring match)")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if monitorPortName == "" {
		monitorPortName = cfg.Ports.Input
	}
	if monitorPortName == "" {
		return fmt.Errorf("no input port configured; pass --in or set ports.input in the config")
	}

	bridge, err := midi.NewBridge(monitorPortName, "", nil)
	if err != nil {
		return err
	}
	defer bridge.Close()

	monitor := engine.NewMIDIMonitor()
	if err := bridge.Listen(func(ev midi.Event) {
		monitor.Record(engine.DirIn, ev.Kind.String(), ev.Channel, ev.Summary())
	}); err != nil {
		return err
	}

	m := tui.NewModel(monitor, theme.New(theme.DefaultPalette()), monitorPortName)
	p := tea.NewProgram(m, tea.WithAltScreen())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}
