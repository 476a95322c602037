package main

import (
	"net/http"
	"os"

	_ "net/http/pprof" // profiling

	"asmlens/internal/asmlens/cmd"
	"asmlens/internal/asmlens/log"
	"asmlens/internal/logging"
)

func main() {
	lg := logging.New()
	defer lg.Close()
	defer log.RecoverPanic("main", func() {
		lg.Error("Terminated due to unhandled panic")
	})

	// ASMLENS_PPROF=1 serves on the default port, anything else is taken
	// as a listen address.
	if addr := os.Getenv("ASMLENS_PPROF"); addr != "" {
		if addr == "1" {
			addr = "localhost:6060"
		}
		go func() {
			lg.Info("Serving pprof", "addr", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				lg.Error("Failed to serve pprof", "addr", addr, "error", err)
			}
		}()
	}

	lg.Debug("Starting", "args", os.Args[1:])
	cmd.Execute()
}
