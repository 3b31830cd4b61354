// Command driftbox-sweep invokes the authenticated cleanup trigger on a
// running server. It is meant to be run from cron or a systemd timer.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		serverURL = flag.String("server", envOr("DRIFTBOX_URL", "http://localhost:8080"), "driftbox server base URL")
		secret    = flag.String("secret", os.Getenv("CLEANUP_SECRET"), "cleanup bearer token")
		timeout   = flag.Duration("timeout", 5*time.Minute, "request timeout")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *secret == "" {
		slog.Error("cleanup secret is required (flag -secret or CLEANUP_SECRET)")
		os.Exit(2)
	}

	url := strings.TrimSuffix(*serverURL, "/") + "/api/cleanup"
	req, err := http.NewRequest(http.MethodPost, url, nil)
	if err != nil {
		slog.Error("failed to build request", "error", err)
		os.Exit(1)
	}
	req.Header.Set("Authorization", "Bearer "+*secret)

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Do(req)
	if err != nil {
		slog.Error("cleanup request failed", "error", err, "url", url)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		slog.Error("failed to read response", "error", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("cleanup rejected", "status", resp.StatusCode, "body", string(body))
		os.Exit(1)
	}

	var summary struct {
		DeletedFiles         int `json:"deletedFiles"`
		DeletedOrphanedFiles int `json:"deletedOrphanedFiles"`
		DeletedAccounts      int `json:"deletedAccounts"`
		DeletedErrorLogs     int `json:"deletedErrorLogs"`
	}
	if err := json.Unmarshal(body, &summary); err != nil {
		slog.Error("failed to decode summary", "error", err, "body", string(body))
		os.Exit(1)
	}

	fmt.Printf("sweep complete: %d expired files, %d orphans, %d inactive accounts, %d error logs\n",
		summary.DeletedFiles, summary.DeletedOrphanedFiles,
		summary.DeletedAccounts, summary.DeletedErrorLogs)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
