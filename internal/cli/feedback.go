// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/sermonchat/internal/cloud"
)

func newFeedbackCmd(app *App) *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "feedback <message-id> <up|down>",
		Short: "Rate an answer",
		Long: `Rate a saved answer as helpful (up) or unhelpful (down). Rating the same
answer again replaces the earlier rating. Message ids are shown by
"sermonchat history show".`,
		Example: `  sermonchat feedback 42 up
  sermonchat feedback 42 down --comment "cited the wrong sermon"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
			if err != nil || id <= 0 {
				return NewValidationError("message id", args[0], "not a positive number", "sermonchat feedback 42 up")
			}
			positive, err := parseRating(args[1])
			if err != nil {
				return err
			}
			client, err := app.client()
			if err != nil {
				return err
			}
			return OutputJSON(app.out, app.jsonOut, "feedback", func() (interface{}, error) {
				fb, err := client.SubmitFeedback(cmd.Context(), cloud.FeedbackRequest{
					MessageID:  id,
					IsPositive: positive,
					Comment:    comment,
				})
				if err != nil {
					return nil, err
				}
				if !app.jsonOut {
					fmt.Fprintf(app.out, "%s rated message #%d %s\n", RenderStatus("ok"), id, fb.Symbol())
				}
				return fb, nil
			})
		},
	}
	cmd.Flags().StringVarP(&comment, "comment", "m", "", "optional comment")
	return cmd
}

// parseRating accepts up/down and a few synonyms.
func parseRating(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "up", "good", "yes", "+", "+1":
		return true, nil
	case "down", "bad", "no", "-", "-1":
		return false, nil
	}
	return false, NewValidationError("rating", s, "expected up or down", "sermonchat feedback 42 up")
}
