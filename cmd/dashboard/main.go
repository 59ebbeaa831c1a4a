package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"form-analytics-server/dashboard"
	"form-analytics-server/logger"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		apiURL string
		wsURL  string
		formID string
		token  string
		once   bool
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Live terminal dashboard for form analytics",
		Long: "Shows global or per-form analytics and re-renders whenever a new response is submitted.\n" +
			"Press Enter to reload manually, type a form id to switch, or \"-\" for all forms.",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Init(os.Getenv("LOG_LEVEL"), "text").WithField("component", "dashboard")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			client := dashboard.NewClient(dashboard.Options{
				APIURL: apiURL,
				WSURL:  wsURL,
				Token:  token,
				Log:    log,
				OnRender: func(s dashboard.Snapshot) {
					fmt.Fprintln(out)
					dashboard.Render(out, s, time.Now())
				},
			})

			dashboard.Render(out, client.Snapshot(), time.Now())
			if err := client.Select(ctx, formID); err != nil {
				return err
			}
			if once {
				return nil
			}

			go client.Listen(ctx)
			go readCommands(ctx, cmd, client)

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", envOr("DASHBOARD_API_URL", "http://localhost:8000/api"), "REST API base URL")
	cmd.Flags().StringVar(&wsURL, "ws", envOr("DASHBOARD_WS_URL", "ws://localhost:8000/ws/analytics/"), "notification channel URL")
	cmd.Flags().StringVar(&formID, "form", "", "form id to focus on (empty for all forms)")
	cmd.Flags().StringVar(&token, "token", os.Getenv("DASHBOARD_TOKEN"), "admin token when the server requires one")
	cmd.Flags().BoolVar(&once, "once", false, "render once and exit")
	cmd.SilenceUsage = true

	return cmd
}

// readCommands turns stdin lines into manual reloads and selection changes.
func readCommands(ctx context.Context, cmd *cobra.Command, client *dashboard.Client) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		var err error
		switch line {
		case "":
			err = client.Refresh(ctx)
		case "-":
			err = client.Select(ctx, "")
		default:
			err = client.Select(ctx, line)
		}
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
