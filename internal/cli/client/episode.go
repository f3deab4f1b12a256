package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"
)

// Episode is the episode body returned by the detail endpoint.
type Episode struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CaptionURL  string `json:"caption_url,omitempty"`
	AudioURL    string `json:"audio_url,omitempty"`
}

// EpisodeMatch is one highlighted passage of an episode.
type EpisodeMatch struct {
	Text      string     `json:"text"`
	Field     string     `json:"field"`
	Timestamp *TimeRange `json:"timestamp,omitempty"`
}

// EpisodeDetail represents the episode detail API response.
type EpisodeDetail struct {
	Episode         Episode          `json:"episode"`
	Matches         []EpisodeMatch   `json:"matches"`
	KeywordPreviews []KeywordPreview `json:"keyword_previews"`
}

// EpisodeCmd creates the episode command.
func EpisodeCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "episode <id>",
		Short: "Show an episode and where the query matches",
		Long:  "Shows one episode. With --query, lists every matching passage with its playback time.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runEpisode(cmd, api, args[0], query, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Query to locate inside the episode")

	return cmd
}

func runEpisode(cmd *cobra.Command, api *APIClient, id, query string, outputJSON bool) error {
	path := "/episodes/" + url.PathEscape(id)
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}

	resp, err := api.Get(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("failed to get episode: %w", err)
	}

	var detail EpisodeDetail
	if err := json.Unmarshal(resp.Data, &detail); err != nil {
		return fmt.Errorf("failed to parse episode: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		output, _ := json.MarshalIndent(detail, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	printEpisode(out, detail, query)
	return nil
}

func printEpisode(out io.Writer, detail EpisodeDetail, query string) {
	fmt.Fprintf(out, "%s\n", detail.Episode.Title)
	fmt.Fprintf(out, "ID: %s\n", detail.Episode.ID)
	if detail.Episode.AudioURL != "" {
		fmt.Fprintf(out, "Audio: %s\n", detail.Episode.AudioURL)
	}
	if query == "" {
		if detail.Episode.Description != "" {
			fmt.Fprintf(out, "\n%s\n", detail.Episode.Description)
		}
		return
	}

	if len(detail.Matches) == 0 {
		fmt.Fprintf(out, "\nNo matches for %q.\n", query)
		return
	}

	fmt.Fprintf(out, "\n%d matches:\n", len(detail.Matches))
	for _, m := range detail.Matches {
		if ts := formatRange(m.Timestamp); ts != "" {
			fmt.Fprintf(out, "  %s %s\n", ts, renderHighlight(m.Text))
		} else {
			fmt.Fprintf(out, "  (%s) %s\n", m.Field, renderHighlight(m.Text))
		}
	}

	if len(detail.KeywordPreviews) > 0 {
		fmt.Fprintln(out, "\nKeywords:")
		for _, kp := range detail.KeywordPreviews {
			line := fmt.Sprintf("  %s: %s", kp.Keyword, renderHighlight(kp.Fragment))
			if ts := formatRange(kp.Timestamp); ts != "" {
				line += " " + ts
			}
			fmt.Fprintln(out, line)
		}
	}
}
