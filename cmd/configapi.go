package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"fabrikmcp/internal/configapi"
	"fabrikmcp/internal/log"
)

var configAPIPort int

var configAPICmd = &cobra.Command{
	Use:   "config-api",
	Short: "Runs a sample agent configuration API",
	Long: `Runs a sample agent configuration API serving the built-in catalog at
/config/{configId} and /config?agentId={agentId}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := cfg.ConfigAPI.Port
		if cmd.Flags().Changed("port") {
			port = configAPIPort
		}

		addr := fmt.Sprintf(":%d", port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("could not listen on %s: %w", addr, err)
		}

		catalog := configapi.DefaultCatalog()
		srv := &http.Server{Handler: configapi.NewHandler(catalog), ReadHeaderTimeout: 10 * time.Second}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Serve(lis) }()

		base := fmt.Sprintf("http://localhost:%d", lis.Addr().(*net.TCPAddr).Port)
		log.Infof("config API listening on %s", lis.Addr())
		fmt.Fprintln(cmd.OutOrStdout(), catalog.Describe(base))

		select {
		case <-cmd.Context().Done():
			log.Infof("shutting down config API")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(configAPICmd)
	configAPICmd.Flags().IntVarP(&configAPIPort, "port", "p", 3003, "The port to listen on")
}
