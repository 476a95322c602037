package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"asmlens/internal/asmlens/log"
	"asmlens/internal/server"
)

var (
	flagPort    int
	flagWebRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket server",
	Long: `Serve the browser UI plus a JSON API. POST /api/annotate accepts
{source_file, target_file, assembly, options}; /ws speaks the same shape
over WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Setup(flagDebug)

		// The server can still annotate inline assembly without a
		// compilation database.
		ccj, err := resolveCCJ()
		if err != nil {
			ccj = ""
		}
		s := server.New(ccj, flagWebRoot)
		return s.ListenAndServe(cmd.Context(), fmt.Sprintf(":%d", flagPort))
	},
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 4242, "port to listen on")
	serveCmd.Flags().StringVar(&flagWebRoot, "web-root", "", "serve static files from DIR instead of the embedded page")
	rootCmd.AddCommand(serveCmd)
}
