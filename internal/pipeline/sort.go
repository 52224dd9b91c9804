package pipeline

import (
	"sort"

	"github.com/nhle/gh-triage/internal/model"
)

// tier buckets groups for ordering: the caller's own content first,
// then anything needing their attention, then everything else.
func tier(g *model.NotificationGroup) int {
	switch {
	case g.IsOwnContent:
		return 0
	case g.IsProminent:
		return 1
	default:
		return 2
	}
}

// sortGroups orders groups by tier, breaking ties by descending
// most-recent-event timestamp. The sort is stable so re-processing
// identical input yields identical output.
func sortGroups(groups []*model.NotificationGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		ti, tj := tier(groups[i]), tier(groups[j])
		if ti != tj {
			return ti < tj
		}
		return groups[i].LatestEventTime() > groups[j].LatestEventTime()
	})
}
