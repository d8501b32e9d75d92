package service

import (
	"context"
	"time"

	"github.com/gridpoint-ai/gridpoint/internal/domain"
	"github.com/gridpoint-ai/gridpoint/internal/pagination"
	"github.com/gridpoint-ai/gridpoint/internal/telemetry"
)

// ProjectPageResult is one page of a project listing.
type ProjectPageResult struct {
	Items      []*domain.Project
	NextCursor string
	HasMore    bool
}

// ProjectRepositoryInterface defines the repository interface for project
// persistence.
type ProjectRepositoryInterface interface {
	Create(ctx context.Context, project *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	GetOwnedByIDs(ctx context.Context, ownerID string, ids []string) ([]*domain.Project, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Project, error)
	ListByOwnerWithCursor(ctx context.Context, ownerID string, cursor *pagination.Cursor, limit int) (*ProjectPageResult, error)
	Update(ctx context.Context, project *domain.Project) error
	Delete(ctx context.Context, id string) error
}

// CreateProjectInput represents the input for creating a project
type CreateProjectInput struct {
	OwnerID     string
	Name        string
	Description string
	Market      string
	Location    string
	Metadata    map[string]string
}

// UpdateProjectInput represents the input for updating a project
type UpdateProjectInput struct {
	ProjectID   string
	OwnerID     string
	Name        string
	Description string
	Market      string
	Location    string
	Status      domain.ProjectStatus
	Metadata    map[string]string
}

type ListProjectsInput struct {
	OwnerID string
	Cursor  string
	Limit   int
}

type ListProjectsOutput struct {
	Items   []*domain.Project
	Cursor  string
	HasMore bool
}

// ProjectService handles business logic for projects.
type ProjectService struct {
	projectRepo ProjectRepositoryInterface
	uuidGen     UUIDGenerator
}

func NewProjectService(projectRepo ProjectRepositoryInterface) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		uuidGen:     &DefaultUUIDGenerator{},
	}
}

// NewProjectServiceWithUUIDGen creates a ProjectService with a custom UUID
// generator (for testing).
func NewProjectServiceWithUUIDGen(projectRepo ProjectRepositoryInterface, uuidGen UUIDGenerator) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		uuidGen:     uuidGen,
	}
}

func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*domain.Project, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Create", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		Operation: "create",
	})
	defer span.End()

	now := time.Now().UTC()
	project := domain.NewProject(s.uuidGen.NewString(), input.OwnerID, input.Name, input.Description, input.Market, input.Location, now)
	project.Metadata = input.Metadata

	if err := domain.ValidateProject(project); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidArgument, "invalid project", err)
	}

	if err := s.projectRepo.Create(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// Get returns a project after verifying the caller owns it.
func (s *ProjectService) Get(ctx context.Context, ownerID, projectID string) (*domain.Project, error) {
	project, err := s.projectRepo.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, domain.ErrNotOwner
	}
	return project, nil
}

func (s *ProjectService) List(ctx context.Context, input ListProjectsInput) (*ListProjectsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.List", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		Operation: "list",
	})
	defer span.End()

	cursor, _ := pagination.DecodeCursor(input.Cursor)
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.projectRepo.ListByOwnerWithCursor(ctx, input.OwnerID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListProjectsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

func (s *ProjectService) Update(ctx context.Context, input UpdateProjectInput) (*domain.Project, error) {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Update", telemetry.SpanAttributes{
		UserID:    input.OwnerID,
		ProjectID: input.ProjectID,
		Operation: "update",
	})
	defer span.End()

	project, err := s.Get(ctx, input.OwnerID, input.ProjectID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		project.Name = input.Name
	}
	if input.Description != "" {
		project.Description = input.Description
	}
	if input.Market != "" {
		project.Market = input.Market
	}
	if input.Location != "" {
		project.Location = input.Location
	}
	if input.Status != "" {
		project.Status = input.Status
	}
	if input.Metadata != nil {
		project.Metadata = input.Metadata
	}

	if err := domain.ValidateProject(project); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidArgument, "invalid project", err)
	}

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, err
	}

	return project, nil
}

// Delete removes a project. Documents and chunks cascade in the database.
func (s *ProjectService) Delete(ctx context.Context, ownerID, projectID string) error {
	ctx, span := telemetry.StartSpan(ctx, "ProjectService.Delete", telemetry.SpanAttributes{
		UserID:    ownerID,
		ProjectID: projectID,
		Operation: "delete",
	})
	defer span.End()

	if _, err := s.Get(ctx, ownerID, projectID); err != nil {
		return err
	}

	return s.projectRepo.Delete(ctx, projectID)
}
