package subcontractors

import "time"

// Subcontractor is a directory entry for an external crew or firm.
type Subcontractor struct {
	ID            string    `json:"id"`
	CompanyName   string    `json:"company_name"`
	Trade         string    `json:"trade"`
	ContactName   string    `json:"contact_name,omitempty"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	ContactPhone  string    `json:"contact_phone,omitempty"`
	LicenseNumber string    `json:"license_number,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListFilter narrows a directory listing.
type ListFilter struct {
	Trade      string
	ActiveOnly bool
}
