// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// healthReport is the --json shape of the health command.
type healthReport struct {
	BaseURL   string `json:"base_url"`
	Status    string `json:"status"`
	Service   string `json:"service"`
	LatencyMs int64  `json:"latency_ms"`
}

func newHealthCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := app.client()
			if err != nil {
				return err
			}
			return OutputJSON(app.out, app.jsonOut, "health", func() (interface{}, error) {
				start := time.Now()
				h, err := client.Health(cmd.Context())
				if err != nil {
					return nil, NewCommandError("health", "probe", client.BaseURL(), err)
				}
				report := healthReport{
					BaseURL:   client.BaseURL(),
					Status:    h.Status,
					Service:   h.Service,
					LatencyMs: time.Since(start).Milliseconds(),
				}
				if !app.jsonOut {
					status := "ok"
					if !h.OK() {
						status = "warn"
					}
					fmt.Fprintf(app.out, "%s %s\n", RenderLabel("Service"), h.Service)
					fmt.Fprintf(app.out, "%s %s\n", RenderLabel("URL"), report.BaseURL)
					fmt.Fprintf(app.out, "%s %s %s\n", RenderLabel("Status"), RenderStatus(status), h.Status)
					fmt.Fprintf(app.out, "%s %dms\n", RenderLabel("Latency"), report.LatencyMs)
				}
				if !h.OK() {
					return report, NewCommandError("health", "probe", "service reported "+h.Status, nil)
				}
				return report, nil
			})
		},
	}
}
