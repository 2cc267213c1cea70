package bookmark

import (
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/surveillance-api/internal/model"
)

// DefaultStorageKey holds every saved filter set of every report type.
const DefaultStorageKey = "surveillance:saved-report-filters"

// createdAtLayout matches what browsers emit for Date.toISOString.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// decodeCollection parses the persisted array. A JSON null decodes to an
// empty collection; anything that is not an array of filter sets is an error.
func decodeCollection(raw []byte) ([]model.SavedFilterSet, error) {
	var sets []model.SavedFilterSet
	if err := json.Unmarshal(raw, &sets); err != nil {
		return nil, fmt.Errorf("invalid saved filter collection: %w", err)
	}
	for i := range sets {
		if sets[i].Filters == nil {
			sets[i].Filters = map[string]string{}
		}
	}
	return sets, nil
}

func encodeCollection(sets []model.SavedFilterSet) ([]byte, error) {
	if sets == nil {
		sets = []model.SavedFilterSet{}
	}
	raw, err := json.Marshal(sets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode saved filter collection: %w", err)
	}
	return raw, nil
}

// filterByReportType keeps storage order.
func filterByReportType(sets []model.SavedFilterSet, reportTypeID string) []model.SavedFilterSet {
	out := make([]model.SavedFilterSet, 0, len(sets))
	for _, s := range sets {
		if s.ReportTypeID == reportTypeID {
			out = append(out, s)
		}
	}
	return out
}

// removeByID returns the collection without id and whether anything was dropped.
func removeByID(sets []model.SavedFilterSet, id string) ([]model.SavedFilterSet, bool) {
	out := make([]model.SavedFilterSet, 0, len(sets))
	removed := false
	for _, s := range sets {
		if s.ID == id {
			removed = true
			continue
		}
		out = append(out, s)
	}
	return out, removed
}

func findByID(sets []model.SavedFilterSet, id string) (model.SavedFilterSet, bool) {
	for _, s := range sets {
		if s.ID == id {
			return s, true
		}
	}
	return model.SavedFilterSet{}, false
}

func containsID(sets []model.SavedFilterSet, id string) bool {
	_, ok := findByID(sets, id)
	return ok
}

func copyFilters(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copySet(s model.SavedFilterSet) model.SavedFilterSet {
	s.Filters = copyFilters(s.Filters)
	return s
}

func copySets(sets []model.SavedFilterSet) []model.SavedFilterSet {
	out := make([]model.SavedFilterSet, len(sets))
	for i, s := range sets {
		out[i] = copySet(s)
	}
	return out
}
