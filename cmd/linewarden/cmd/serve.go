package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/solatis/linewarden/internal/core/api"
	"github.com/solatis/linewarden/internal/core/auth"
	"github.com/solatis/linewarden/internal/core/config"
	"github.com/solatis/linewarden/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC validation service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "gRPC server host")
	serveCmd.Flags().Int("port", 0, "gRPC server port")
	serveCmd.Flags().Bool("insecure-no-auth", false, "serve without request signing")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("host") {
		host, _ := cmd.Flags().GetString("host")
		a.cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		a.cfg.Server.Port = port
	}

	var authenticator *auth.Authenticator
	if noAuth, _ := cmd.Flags().GetBool("insecure-no-auth"); noAuth {
		a.logger.Warn("request signing disabled")
	} else {
		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		if len(secrets) == 0 {
			return fmt.Errorf("no HMAC secrets configured (set LW_HMAC_SECRET or pass --insecure-no-auth)")
		}
		authenticator = auth.NewAuthenticator(secrets)
	}

	src, err := a.source()
	if err != nil {
		return err
	}
	svc, err := a.service(src)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&a.cfg.Server, api.NewHandler(svc), authenticator, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	a.logger.Infof("starting linewarden validation service v%s on %s:%d", Version, a.cfg.Server.Host, a.cfg.Server.Port)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(context.Background())
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		a.logger.Info("shutting down gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return grpcServer.Shutdown(ctx)
	}
}
