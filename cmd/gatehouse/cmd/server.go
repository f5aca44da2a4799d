package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/gatehouse/api"
	"github.com/jmcleod/gatehouse/auth"
	"github.com/jmcleod/gatehouse/internal/redact"
	"github.com/jmcleod/gatehouse/storage"
	bboltstorage "github.com/jmcleod/gatehouse/storage/bbolt"
	"github.com/jmcleod/gatehouse/storage/memory"
)

var (
	port              int
	dataDir           string
	inMemory          bool
	sessionCookieName string
	basicAuth         bool
	bcryptCost        int
	tlsCert           string
	tlsKey            string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the authentication service server",
	RunE: func(cmd *cobra.Command, args []string) error {
		var store storage.UserStore
		if inMemory {
			store = memory.NewStore()
		} else {
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			bs, err := bboltstorage.NewStoreFromFile(dataDir+"/users.db", nil)
			if err != nil {
				return fmt.Errorf("failed to open user storage: %w", err)
			}
			defer bs.Close()
			store = bs
		}

		logger := slog.New(redact.NewHandler(slog.NewJSONHandler(os.Stderr, nil)))

		svc := auth.New(store, auth.WithPasswordHasher(auth.NewBcryptHasher(bcryptCost)))
		opts := []api.Option{
			api.WithLogger(logger),
			api.WithSessionCookieName(sessionCookieName),
			api.WithAlertFunc(func(ev api.AlertEvent) {
				logger.Warn("alert",
					slog.String("type", string(ev.Type)),
					slog.String("message", ev.Message),
					slog.Int("count", ev.Count))
			}),
		}
		if basicAuth {
			opts = append(opts, api.WithBasicAuth())
		}
		a := api.New(svc, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			var err error
			if tlsCert != "" && tlsKey != "" {
				err = server.ListenAndServeTLS(tlsCert, tlsKey)
			} else {
				err = server.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d...\n", port)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 5000, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data")
	serverCmd.Flags().BoolVar(&inMemory, "in-memory", false, "Use the in-memory user store (state is lost on exit)")
	serverCmd.Flags().StringVar(&sessionCookieName, "session-cookie-name", api.DefaultSessionCookieName, "Name of the session cookie")
	serverCmd.Flags().BoolVar(&basicAuth, "basic-auth", false, "Accept Authorization: Basic credentials on protected routes")
	serverCmd.Flags().IntVar(&bcryptCost, "bcrypt-cost", 0, "bcrypt cost factor (0 uses the library default)")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
}
