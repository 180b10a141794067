package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/directory"
	"github.com/ekaya-inc/order-insight/pkg/handlers"
	"github.com/ekaya-inc/order-insight/pkg/logging"
)

var (
	configPath string
	verbose    bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "order-insight",
		Short: "Journal comment prediction and natural-language queries over SQL Server",
		Long: `order-insight predicts journal comments for orders from the comments of
recent orders with similar trend patterns, and answers natural-language
questions by translating them into read-only SQL Server queries.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "config file path")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(),
		newPredictCmd(),
		newAskCmd(),
		newCompaniesCmd(),
		newDatabasesCmd(),
		newProbeCmd(),
	)
	return root
}

// addTargetFlags binds the flags that select a database.
func addTargetFlags(cmd *cobra.Command, t *directory.Target) {
	cmd.Flags().StringVar(&t.Company, "company", "", "company name from the directory")
	cmd.Flags().StringVar(&t.ServerID, "server-id", "", "server id from the server directory")
	cmd.Flags().StringVar(&t.DatabaseID, "database-id", "", "database id under --server-id")
	cmd.Flags().StringVar(&t.Server, "server", "", "SQL Server host (explicit connection)")
	cmd.Flags().StringVar(&t.Database, "database", "", "database name (overrides the company's database)")
	cmd.Flags().StringVar(&t.Username, "username", "", "SQL login; empty uses integrated authentication")
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API, metrics and MCP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
		Handler:           handlers.NewRouter(a.routerDeps()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Starting order-insight",
		zap.String("addr", srv.Addr),
		zap.String("version", a.cfg.Version),
		zap.String("env", a.cfg.Env),
		zap.String("model", a.generator.Model()),
		zap.Int("companies", len(a.directory.Companies())))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newPredictCmd() *cobra.Command {
	var (
		target      directory.Target
		orderNumber string
		writeBack   bool
		rowKey      string
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the journal comment for one order",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if writeBack && strings.TrimSpace(rowKey) == "" {
				return errors.New("--row-key is required with --write-back")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			params, err := a.resolver().Resolve(target)
			if err != nil {
				return err
			}
			resp := a.prediction.PredictOrder(cmd.Context(), params, orderNumber)
			if writeBack && !resp.IsError() {
				resp.WriteBack = a.prediction.WriteBack(cmd.Context(), params, rowKey, resp.PredictionResult)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	addTargetFlags(cmd, &target)
	cmd.Flags().StringVarP(&orderNumber, "order", "o", "", "order number to predict (required)")
	cmd.Flags().BoolVar(&writeBack, "write-back", false, "store the prediction in the write-back table")
	cmd.Flags().StringVar(&rowKey, "row-key", "", "key of the single write-back row (required with --write-back)")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func newAskCmd() *cobra.Command {
	var (
		target   directory.Target
		question string
	)
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Answer a natural-language question against a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			params, err := a.resolver().Resolve(target)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a.query.Ask(cmd.Context(), params, question))
		},
	}
	addTargetFlags(cmd, &target)
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to ask (required)")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

func newCompaniesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List companies and servers from the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			return printJSON(cmd.OutOrStdout(), map[string]any{
				"companies": a.directory.Companies(),
				"servers":   a.directory.Servers(),
			})
		},
	}
}

func newDatabasesCmd() *cobra.Command {
	var target directory.Target
	cmd := &cobra.Command{
		Use:   "databases",
		Short: "List the user databases on a server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			params, err := a.resolver().Resolve(target)
			if err != nil {
				return err
			}
			if err := params.Validate(false); err != nil {
				return err
			}
			conn, err := a.connector.Connect(cmd.Context(), params)
			if err != nil {
				return errors.New(logging.SanitizeError(err))
			}
			defer conn.Close()

			databases, err := conn.ListDatabases(cmd.Context())
			if err != nil {
				return errors.New(logging.SanitizeError(err))
			}
			return printJSON(cmd.OutOrStdout(), handlers.DatabasesResponse{Server: params.Server, Databases: databases})
		},
	}
	addTargetFlags(cmd, &target)
	return cmd
}

func newProbeCmd() *cobra.Command {
	var target directory.Target
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check that a database is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = a.logger.Sync() }()

			params, err := a.resolver().Resolve(target)
			if err != nil {
				return err
			}
			if err := params.Validate(false); err != nil {
				return err
			}
			resp := handlers.ConnectionStatusResponse{Target: params.String(), Connected: true, Message: "Connection successful"}
			if err := a.connector.Probe(cmd.Context(), params); err != nil {
				resp.Connected = false
				resp.Message = logging.SanitizeError(err)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	addTargetFlags(cmd, &target)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
