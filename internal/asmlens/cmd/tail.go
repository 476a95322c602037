package cmd

import (
	"fmt"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"

	"asmlens/internal/asmlens/log"
	"asmlens/internal/ui/colorize"
)

var tailCmd = &cobra.Command{
	Use:   "tail [asm-file]",
	Short: "Follow a growing assembly listing",
	Long: `Follow an assembly file as the compiler writes it, printing each new
line colorized. Useful next to a long build producing -S output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Setup(flagDebug)

		t, err := tail.TailFile(args[0], tail.Config{
			Follow: true,
			ReOpen: true,
			Logger: tail.DiscardingLogger,
		})
		if err != nil {
			return fmt.Errorf("tail %s: %w", args[0], err)
		}
		defer t.Cleanup()

		for {
			select {
			case <-cmd.Context().Done():
				return t.Stop()
			case line, ok := <-t.Lines:
				if !ok {
					return nil
				}
				if line.Err != nil {
					return line.Err
				}
				fmt.Fprintln(cmd.OutOrStdout(), colorize.Line(line.Text))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(tailCmd)
}
