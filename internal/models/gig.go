package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gig is a short-term job listing owned by an employer.
type Gig struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	EmployerID       uuid.UUID       `db:"employer_id" json:"employer_id"`
	Title            string          `db:"title" json:"title"`
	Description      string          `db:"description" json:"description"`
	Budget           decimal.Decimal `db:"budget" json:"budget"`
	Status           GigStatus       `db:"status" json:"status"`
	AssignedWorkerID uuid.NullUUID   `db:"assigned_worker_id" json:"assigned_worker_id,omitempty"`
	MaxApplicants    int             `db:"max_applicants" json:"max_applicants"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

func (g *Gig) IsOwnedBy(userID uuid.UUID) bool {
	return g.EmployerID == userID
}
