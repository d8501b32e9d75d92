package domain

import (
	"fmt"
	"time"
)

// ProjectStatus represents the status of a project
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

// Project is a tenant-scoped container for documents and chat scope.
// Deleting a project cascades to its documents and chunks.
type Project struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Market      string // e.g. solar, onshore wind
	Location    string
	Status      ProjectStatus
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProject creates a new active Project instance
func NewProject(id, ownerID, name, description, market, location string, createdAt time.Time) *Project {
	return &Project{
		ID:          id,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		Market:      market,
		Location:    location,
		Status:      ProjectStatusActive,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateProject validates a Project instance
func ValidateProject(p *Project) error {
	if p == nil {
		return fmt.Errorf("project cannot be nil")
	}

	if p.ID == "" {
		return fmt.Errorf("project ID is required")
	}

	if p.OwnerID == "" {
		return fmt.Errorf("project OwnerID is required")
	}

	if p.Name == "" {
		return fmt.Errorf("project Name is required")
	}

	if !isValidProjectStatus(p.Status) {
		return fmt.Errorf("project Status is invalid: %s", p.Status)
	}

	return nil
}

func isValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusArchived:
		return true
	}
	return false
}
