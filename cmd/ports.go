package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieldekerlegandevolve/sound-designer-sub002/midi"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available MIDI ports",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Input ports:")
		ins := midi.InPortNames()
		if len(ins) == 0 {
			fmt.Println("  (none)")
		}
		for _, name := range ins {
			fmt.Printf("  %s\n", name)
		}

		fmt.Println("Output ports:")
		outs := midi.OutPortNames()
		if len(outs) == 0 {
			fmt.Println("  (none)")
		}
		for _, name := range outs {
			fmt.Printf("  %s\n", name)
		}
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
