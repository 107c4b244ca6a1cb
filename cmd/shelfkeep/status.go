// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shelfkeep Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// probeTimeout bounds each health probe request.
const probeTimeout = 2 * time.Second

// ProbeStatus is the result of one health probe.
type ProbeStatus struct {
	Probe      string `json:"probe"`
	URL        string `json:"url"`
	Healthy    bool   `json:"healthy"`
	StatusCode int    `json:"status_code,omitempty"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// newStatusCmd creates the status subcommand with all flags configured.
func newStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running shelfkeep server",
		Long: `Query the liveness and readiness probes on the metrics address of a
running server. Readiness includes database reachability.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address of the server")

	return cmd
}

// runStatus executes the status command.
func runStatus(cmd *cobra.Command, sc *statusConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Metrics.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("metrics.addr is empty; the server exposes no health probes")
	}

	base := probeBaseURL(cfg.Metrics.Addr)
	client := &http.Client{Timeout: probeTimeout}
	statuses := []ProbeStatus{
		queryProbe(cmd.Context(), client, "liveness", base+"/healthz/liveness"),
		queryProbe(cmd.Context(), client, "readiness", base+"/healthz/readiness"),
	}

	if sc.jsonOutput {
		output, err := formatStatusJSON(statuses)
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		cmd.Println(output)
		return nil
	}
	cmd.Println(formatStatusTable(statuses))
	return nil
}

// probeBaseURL turns a listen address into a URL a client can dial. An
// empty or unspecified host means the local machine.
func probeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// queryProbe performs one GET and reports whether it answered 200.
func queryProbe(ctx context.Context, client *http.Client, probe, url string) ProbeStatus {
	status := ProbeStatus{Probe: probe, URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	start := time.Now()
	resp, err := client.Do(req)
	status.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	status.StatusCode = resp.StatusCode
	status.Healthy = resp.StatusCode == http.StatusOK
	if !status.Healthy {
		status.Error = http.StatusText(resp.StatusCode)
	}
	return status
}

// formatStatusTable formats the probes as a human-readable table.
func formatStatusTable(statuses []ProbeStatus) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROBE\tSTATUS\tCODE\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t-------\t------")

	for _, s := range statuses {
		state := "healthy"
		if !s.Healthy {
			state = "unhealthy"
		}
		code := "-"
		if s.StatusCode != 0 {
			code = fmt.Sprint(s.StatusCode)
		}
		detail := s.Error
		if detail == "" {
			detail = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n", s.Probe, state, code, s.LatencyMS, detail)
	}

	_ = w.Flush()
	return b.String()
}

// formatStatusJSON formats the probes as JSON.
func formatStatusJSON(statuses []ProbeStatus) (string, error) {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal status: %w", err)
	}
	return string(data), nil
}
