// Command hyxctl loads a hyx JSON policy configuration and serves a
// readiness endpoint for it, so a policy config can be validated and
// probed outside of the process that actually uses it (e.g. a sidecar
// health check, or a one-off config smoke test in CI).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyxgo/hyx"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "hyxctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("hyxctl", flag.ContinueOnError)
	configPath := fs.String("config", "hyx.json", "path to a hyx policy config JSON file")
	addr := fs.String("addr", ":8080", "address to serve /readyz on")
	once := fs.Bool("once", false, "check readiness once, print the result as JSON, and exit (no server)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg, err := hyx.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	// Touch every configured policy so it registers with reg and
	// participates in readiness reporting before the first probe.
	warmConfiguredPolicies(reg)

	if *once {
		return printReadiness(reg)
	}

	return serve(reg, *addr)
}

// warmConfiguredPolicies instantiates a bare policy for every name present
// in the loaded config, which is enough for [hyx.Policy] to register
// itself with the registry for readiness purposes. Callers that embed
// hyx directly would do this implicitly the first time they call
// [hyx.GetPolicy]; hyxctl has no caller, so it does it up front.
func warmConfiguredPolicies(reg *hyx.Registry) {
	for _, name := range reg.ConfiguredPolicyNames() {
		hyx.GetPolicy[any](reg, name)
	}
}

func printReadiness(reg *hyx.Registry) error {
	status := reg.CheckReadiness()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(status); err != nil {
		return fmt.Errorf("encode readiness status: %w", err)
	}

	if !status.Ready {
		return fmt.Errorf("not ready")
	}

	return nil
}

func serve(reg *hyx.Registry, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/readyz", hyx.ReadinessHandler(reg))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("hyxctl: serving readiness on %s/readyz\n", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
