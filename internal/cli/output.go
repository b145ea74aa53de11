// Package cli provides output formatting for the Kensaku CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one result per line.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// ParseSearchOutputFormat validates a format flag value.
func ParseSearchOutputFormat(s string) (SearchOutputFormat, error) {
	switch SearchOutputFormat(s) {
	case OutputText, OutputCompact, OutputJSON:
		return SearchOutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// WriteSearchResults writes a search response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, result := range response.Results {
			fmt.Fprintf(w, "%.4f\t%s\t%s\n", result.Score, result.ChunkID,
				utils.CollapseWhitespace(utils.Truncate(result.Text, 120)))
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	order := "fusion"
	if response.Reranked {
		order = "reranked"
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (%s order)\n\n",
		len(response.Results), response.QueryTime, order)
	for rank, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %s\n", rank+1, result.Score, result.ChunkID)
		if title, ok := result.Metadata["title"].(string); ok && title != "" {
			fmt.Fprintf(w, "Title: %s\n", title)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(result.Text, 200))
	}
}
