package repository

import (
	"context"
	"database/sql"
	"time"

	"envmon_dashboard/internal/models"
)

// EventFilter narrows a journal listing. Zero values match everything.
type EventFilter struct {
	From     time.Time
	To       time.Time
	Type     string
	DeviceID string
	Kind     models.SensorKind
}

// EventRepo is the operator command journal.
type EventRepo interface {
	Append(ctx context.Context, e models.ControlEvent) error
	List(ctx context.Context, f EventFilter) ([]models.ControlEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
