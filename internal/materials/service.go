package materials

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/girderhq/girder/internal/shared"
)

// RepositoryPort defines data access methods for the material catalog.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]Material, int, error)
	Get(ctx context.Context, id string) (Material, error)
	Create(ctx context.Context, m Material) error
	Update(ctx context.Context, m Material) error
}

// Service handles material catalog logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns catalog entries with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]Material, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(page.Page, page.PerPage, total), nil
}

// Get fetches one catalog entry.
func (s *Service) Get(ctx context.Context, id string) (Material, error) {
	return s.repo.Get(ctx, id)
}

// CreateInput captures a new catalog entry.
type CreateInput struct {
	Name     string
	SKU      string
	Unit     string
	UnitCost float64
	Supplier string
}

// Create adds a catalog entry.
func (s *Service) Create(ctx context.Context, in CreateInput) (Material, error) {
	now := time.Now().UTC()
	m := Material{
		ID:        uuid.NewString(),
		Name:      in.Name,
		SKU:       in.SKU,
		Unit:      in.Unit,
		UnitCost:  in.UnitCost,
		Supplier:  in.Supplier,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return Material{}, err
	}
	return m, nil
}

// UpdateInput carries the editable fields of a catalog entry.
type UpdateInput struct {
	Name     string
	Unit     string
	UnitCost float64
	Supplier string
	Status   Status
}

// Update rewrites a catalog entry.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Material, error) {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return Material{}, err
	}
	m.Name = in.Name
	m.Unit = in.Unit
	m.UnitCost = in.UnitCost
	m.Supplier = in.Supplier
	m.Status = in.Status
	if err := s.repo.Update(ctx, m); err != nil {
		return Material{}, err
	}
	return m, nil
}

// Archive retires a catalog entry without deleting history.
func (s *Service) Archive(ctx context.Context, id string) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	m.Status = StatusArchived
	return s.repo.Update(ctx, m)
}
