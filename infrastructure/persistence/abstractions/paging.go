package abstractions

import (
	"sort"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
)

// ApplyQuery filters candidates with q, orders them and applies the
// limit. Candidates are not modified.
func ApplyQuery(candidates []entities.Item, q ports.ItemQuery) []entities.Item {
	out := make([]entities.Item, 0, len(candidates))
	for _, item := range candidates {
		if q.Matches(item) {
			out = append(out, item.Clone())
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return q.Less(out[i].Metadata, out[j].Metadata)
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
