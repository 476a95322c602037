package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"asmlens/internal/asmlens/log"
	"asmlens/internal/rpc"
)

var rpcCmd = &cobra.Command{
	Use:   "rpc",
	Short: "Serve JSON-RPC over stdio",
	Long: `Read Content-Length framed JSON-RPC 2.0 requests from stdin and write
responses to stdout, the way LSP clients expect. Methods: initialize,
infer, asm, annotate, shutdown. Blocks until shutdown or EOF.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Setup(flagDebug)

		ccj, err := resolveCCJ()
		if err != nil {
			return err
		}
		session := rpc.NewSession(ccj, filepath.Dir(ccj))
		return session.Serve(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(rpcCmd)
}
