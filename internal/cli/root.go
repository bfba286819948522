// Package cli implements the uploader command line client
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weddingphotos/server/internal/uploader"
)

// Options holds the flags shared by every command
type Options struct {
	ServerURL    string
	SessionToken string
	Timeout      time.Duration
}

var opts = &Options{}

var rootCmd = &cobra.Command{
	Use:          "uploader",
	Short:        "Wedding photos uploader",
	Long:         "Command line client that signs in to the wedding photos server and uploads local photos and videos straight to the shared album.",
	SilenceUsage: true,
}

// Execute runs the root command. Ctrl-C cancels in-flight transfers.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	serverURL := os.Getenv("WEDDING_PHOTOS_SERVER")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVarP(&opts.ServerURL, "server", "s", serverURL,
		"Server base URL")
	rootCmd.PersistentFlags().StringVar(&opts.SessionToken, "session", os.Getenv("WEDDING_PHOTOS_SESSION"),
		"Session token printed by the verify command")
	rootCmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second,
		"Timeout for server API calls")

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newVerifyCmd())
	rootCmd.AddCommand(newUploadCmd())
}

func newAPIClient() *uploader.APIClient {
	return uploader.NewAPIClient(opts.ServerURL, opts.SessionToken, opts.Timeout)
}
