package entitlement

import (
	"sort"
)

// SortEvents applies the total order every finalized timeline must
// satisfy: effective date ascending, then type precedence within one
// instant (migrate entitlement first, migrate billing last), preserving
// insertion order for true ties. The sort is re-applied whenever a
// migration timeline is synthesized; other producers insert in order or
// supersede-and-replace rather than interleave.
func SortEvents(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].EffectiveAt.Equal(events[j].EffectiveAt) {
			return events[i].EffectiveAt.Before(events[j].EffectiveAt)
		}
		return events[i].Rank() < events[j].Rank()
	})
}

// IsSorted reports whether the events already satisfy the total order
func IsSorted(events []*Event) bool {
	return sort.SliceIsSorted(events, func(i, j int) bool {
		if !events[i].EffectiveAt.Equal(events[j].EffectiveAt) {
			return events[i].EffectiveAt.Before(events[j].EffectiveAt)
		}
		return events[i].Rank() < events[j].Rank()
	})
}
