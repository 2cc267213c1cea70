package model

// SavedFilterSet is a named snapshot of report filter parameters.
// The JSON layout is the persisted layout: the whole collection is stored
// as an array of these under a single storage key.
type SavedFilterSet struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	ReportTypeID string            `json:"reportTypeId"`
	Filters      map[string]string `json:"filters"`
	CreatedAt    string            `json:"createdAt"`
}

// CreateFilterRequest is the body of a save-current-filters call.
type CreateFilterRequest struct {
	Name    string            `json:"name" binding:"required,max=120"`
	Filters map[string]string `json:"filters"`
}

// FilterParameters is the response body of a load call.
type FilterParameters struct {
	ID      string            `json:"id"`
	Filters map[string]string `json:"filters"`
}
