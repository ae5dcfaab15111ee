package subcontractors

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/girderhq/girder/internal/shared"
)

// RepositoryPort defines data access methods for the directory.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]Subcontractor, int, error)
	Get(ctx context.Context, id string) (Subcontractor, error)
	Create(ctx context.Context, s Subcontractor) error
	Update(ctx context.Context, s Subcontractor) error
}

// Service handles subcontractor directory logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns directory entries with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]Subcontractor, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Get fetches one directory entry.
func (s *Service) Get(ctx context.Context, id string) (Subcontractor, error) {
	return s.repo.Get(ctx, id)
}

// Input carries the writable fields of a directory entry.
type Input struct {
	CompanyName   string
	Trade         string
	ContactName   string
	ContactEmail  string
	ContactPhone  string
	LicenseNumber string
	IsActive      bool
}

// Create adds a directory entry.
func (s *Service) Create(ctx context.Context, in Input) (Subcontractor, error) {
	now := time.Now().UTC()
	sub := Subcontractor{
		ID:            uuid.NewString(),
		CompanyName:   in.CompanyName,
		Trade:         in.Trade,
		ContactName:   in.ContactName,
		ContactEmail:  in.ContactEmail,
		ContactPhone:  in.ContactPhone,
		LicenseNumber: in.LicenseNumber,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return Subcontractor{}, err
	}
	return sub, nil
}

// Update rewrites a directory entry.
func (s *Service) Update(ctx context.Context, id string, in Input) (Subcontractor, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return Subcontractor{}, err
	}
	sub.CompanyName = in.CompanyName
	sub.Trade = in.Trade
	sub.ContactName = in.ContactName
	sub.ContactEmail = in.ContactEmail
	sub.ContactPhone = in.ContactPhone
	sub.LicenseNumber = in.LicenseNumber
	sub.IsActive = in.IsActive
	if err := s.repo.Update(ctx, sub); err != nil {
		return Subcontractor{}, err
	}
	return sub, nil
}
