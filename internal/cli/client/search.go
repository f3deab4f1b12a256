package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// TimeRange is a playback range in seconds.
type TimeRange struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// KeywordPreview is the fragment chosen for one query keyword.
type KeywordPreview struct {
	Keyword   string     `json:"keyword"`
	Fragment  string     `json:"fragment"`
	Timestamp *TimeRange `json:"timestamp,omitempty"`
}

// SearchResult represents a search result.
type SearchResult struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	Preview         string           `json:"preview"`
	KeywordPreviews []KeywordPreview `json:"keyword_previews,omitempty"`
	Score           float64          `json:"score"`
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search episodes",
		Long: `Searches episode titles, descriptions and transcripts.

Quote a phrase to match it exactly, e.g. podseek search '"machine learning" rust'.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			return runSearch(cmd, api, strings.Join(args, " "), outputJSON)
		},
	}

	return cmd
}

func runSearch(cmd *cobra.Command, api *APIClient, query string, outputJSON bool) error {
	resp, err := api.Get(cmd.Context(), "/search?q="+url.QueryEscape(query))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	var searchResp SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}

	out := cmd.OutOrStdout()
	if outputJSON {
		output, _ := json.MarshalIndent(searchResp, "", "  ")
		fmt.Fprintln(out, string(output))
		return nil
	}

	printSearchResults(out, searchResp)
	return nil
}

func printSearchResults(out io.Writer, resp SearchResponse) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found.")
		return
	}

	fmt.Fprintf(out, "Found %d results:\n\n", len(resp.Results))
	for i, result := range resp.Results {
		fmt.Fprintf(out, "%d. %s (%.2f)\n", i+1, result.Title, result.Score)
		if len(result.KeywordPreviews) > 0 {
			for _, kp := range result.KeywordPreviews {
				fmt.Fprintf(out, "   %s: %s\n", kp.Keyword, renderHighlight(kp.Fragment))
			}
		} else if result.Preview != "" {
			fmt.Fprintf(out, "   %s\n", renderHighlight(result.Preview))
		}
		fmt.Fprintf(out, "   ID: %s\n", result.ID)
		if i < len(resp.Results)-1 {
			fmt.Fprintln(out, strings.Repeat("-", 40))
		}
	}
}
