package domain

// Reference entities incidents point at. They are lookup data for display
// labels and filtering; managing them is outside this service.

// Team owns incidents.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Service is a component of the platform an incident affects.
type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User reports, is assigned to, or comments on incidents.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category classifies incidents; an incident may carry several.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tag is a free-form label attached to incidents.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
