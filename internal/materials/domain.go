package materials

import "time"

// Status of a catalog entry.
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Material is a catalog entry for job site materials.
type Material struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Unit      string    `json:"unit"`
	UnitCost  float64   `json:"unit_cost"`
	Supplier  string    `json:"supplier,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListFilter narrows a material listing.
type ListFilter struct {
	Status Status
	Query  string
}
