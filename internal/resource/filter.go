package resource

import (
	"strings"

	"github.com/research-portal/research-portal/internal/models"
)

// FacetAll is the facet selector value that disables facet filtering.
const FacetAll = "all"

// Filter returns the items whose search text contains query (case-insensitive)
// and whose facet equals facet. The query is matched as typed, surrounding
// spaces included. An empty query and an empty or "all" facet return items
// unchanged. Filter never reorders or copies matching items.
func Filter[T models.Entity](spec Spec[T], items []T, query, facet string) []T {
	query = strings.ToLower(query)
	useFacet := spec.Facet != nil && facet != "" && facet != FacetAll
	if query == "" && !useFacet {
		return items
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if useFacet && spec.Facet(item) != facet {
			continue
		}
		if query != "" && !matches(spec.SearchText(item), query) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func matches(fields []string, query string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}
