package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"insightdeck/internal/adapter/google"
	adapthttp "insightdeck/internal/adapter/http"
	"insightdeck/internal/adapter/memory"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSandboxCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve an in-memory analytics API for local use",
		Long: "sandbox serves the analytics API from memory. Verification and reset " +
			"codes are written to the log instead of being emailed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Sandbox.Addr
			}
			secret := []byte(c.cfg.Sandbox.Secret)
			if len(secret) == 0 {
				secret = make([]byte, 32)
				if _, err := rand.Read(secret); err != nil {
					return err
				}
				c.logger.Warn("no sandbox secret configured, tokens will not survive a restart")
			}

			logger := c.logger.Named("sandbox")
			opts := []adapthttp.Option{adapthttp.WithLogger(logger)}
			if c.cfg.GoogleEnabled() {
				verifier, err := google.NewVerifier(cmd.Context(), c.cfg.Google.ClientID)
				if err != nil {
					return err
				}
				opts = append(opts, adapthttp.WithGoogleVerifier(verifier))
			}
			srv := adapthttp.New(memory.NewBackend(), secret, opts...)
			return serve(cmd.Context(), &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.String("base_path", adapthttp.BasePath))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("sandbox: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sandbox shutdown: %w", err)
	}
	return nil
}
