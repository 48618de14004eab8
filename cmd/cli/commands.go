package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	courtID  string
	start    string
	duration time.Duration
)

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(membersCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(courtsCmd)
	rootCmd.AddCommand(holdCmd)
	rootCmd.AddCommand(bookCmd)
	rootCmd.AddCommand(confirmCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(sweepCmd)

	for _, cmd := range []*cobra.Command{holdCmd, bookCmd} {
		cmd.Flags().StringVar(&courtID, "court", "", "Court id")
		cmd.Flags().StringVar(&start, "start", "", "Start time (RFC3339)")
		cmd.Flags().DurationVar(&duration, "duration", time.Hour, "Length of the booking")
		_ = cmd.MarkFlagRequired("court")
		_ = cmd.MarkFlagRequired("start")
	}
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/health")
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/metrics")
	},
}

var membersCmd = &cobra.Command{
	Use:   "members [search]",
	Short: "List club members",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoint := "/members"
		if len(args) == 1 {
			endpoint += "?search=" + args[0]
		}
		return performGetRequest(endpoint)
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the members with the largest lifetime deposits",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/leaderboard")
	},
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Show the balance and tier of --member",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/wallet")
	},
}

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Request a deposit for --member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/wallet/deposits", json.RawMessage(`{"amount":"`+args[0]+`"}`))
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <entry-id>",
	Short: "Approve a pending deposit (Admin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/wallet/deposits/"+args[0]+"/approve", nil)
	},
}

var courtsCmd = &cobra.Command{
	Use:   "courts",
	Short: "List active courts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performGetRequest("/courts")
	},
}

var holdCmd = &cobra.Command{
	Use:   "hold",
	Short: "Hold a court slot for --member",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bookSlot("/bookings/hold")
	},
}

var bookCmd = &cobra.Command{
	Use:   "book",
	Short: "Book and pay for a court slot in one step",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bookSlot("/bookings/direct")
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm <reservation-id>",
	Short: "Pay for a held slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/bookings/"+args[0]+"/confirm", nil)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <reservation-id>",
	Short: "Cancel a reservation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/bookings/"+args[0]+"/cancel", nil)
	},
}

var sweepCmd = &cobra.Command{
	Use:       "sweep <job>",
	Short:     "Run a sweeper job now (Admin)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"hold-expiry", "reservation-completion", "tournament-status", "reminders", "reconcile"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/admin/sweeper/"+args[0], nil)
	},
}

func bookSlot(endpoint string) error {
	from, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	return performRequest(http.MethodPost, endpoint, map[string]any{
		"courtId": courtID,
		"start":   from,
		"end":     from.Add(duration),
	})
}

func performGetRequest(endpoint string) error {
	return performRequest(http.MethodGet, endpoint, nil)
}

func performRequest(method, endpoint string, payload any) error {
	url := host + endpoint
	fmt.Printf("Making %s request to %s\n", method, url)

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if memberID != "" {
		req.Header.Set("X-Member-ID", memberID)
		req.Header.Set("X-Member-Roles", roles)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
