package query

import (
	"strings"

	"github.com/hyperjump/kensaku/pkg/utils"
)

// expand appends configured synonyms for each query term to the retrieval
// string. The original text always comes first so term order is preserved;
// synonyms are appended in config order. Expansion only affects retrieval,
// the reranker sees the user's original query.
func expand(query string, synonyms map[string][]string) string {
	if len(synonyms) == 0 {
		return query
	}
	var extra []string
	seen := make(map[string]bool)
	for _, tok := range utils.Tokenize(query) {
		for _, syn := range synonyms[tok] {
			syn = strings.ToLower(strings.TrimSpace(syn))
			if syn == "" || syn == tok || seen[syn] {
				continue
			}
			seen[syn] = true
			extra = append(extra, syn)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}
