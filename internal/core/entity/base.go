// Package entity provides base types for all persisted domain entities.
package entity

import (
	"time"
)

///////////////////
// Base Entity   //
///////////////////

// Base contains the fields every persisted entity must carry: a store-assigned
// surrogate key, the soft-delete flag, and the full audit trail.
//
// Audit fields are first-class members rather than storage-level shadow
// properties, so the invariants they carry are visible to implementers and
// testers alike. They are stamped by the persistence layer on save; business
// code never sets them directly.
type Base struct {
	// ID is the primary key, assigned by the store on creation (BIGSERIAL).
	ID int64 `db:"id" json:"id"`

	// IsDeleted marks a row as logically absent. Rows are never physically
	// removed by normal application code.
	IsDeleted bool `db:"is_deleted" json:"isDeleted"`

	// CreatedAt/UpdatedAt are UTC timestamps, updatedAt >= createdAt always.
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	// DeletedAt is set only while IsDeleted is true, cleared on restore.
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`

	// Acting-principal references. Nil when no principal was resolvable.
	CreatedBy *int64 `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy *int64 `db:"updated_by" json:"updatedBy,omitempty"`
	DeletedBy *int64 `db:"deleted_by" json:"deletedBy,omitempty"`
}

// GetID returns the surrogate key.
func (b *Base) GetID() int64 { return b.ID }

// SetID assigns the store-generated key. Called once by the persistence layer
// after insert; the key is immutable thereafter.
func (b *Base) SetID(id int64) { b.ID = id }

// Deleted reports whether the entity is soft-deleted.
func (b *Base) Deleted() bool { return b.IsDeleted }

// LastUpdatedAt returns the current update timestamp. The persistence layer
// reads it before stamping to build the optimistic concurrency guard.
func (b *Base) LastUpdatedAt() time.Time { return b.UpdatedAt }

// StampCreated sets creation audit fields. Called by the persistence layer.
func (b *Base) StampCreated(at time.Time, by *int64) {
	b.CreatedAt = at
	b.UpdatedAt = at
	b.CreatedBy = by
	b.UpdatedBy = by
}

// StampUpdated sets modification audit fields. Called by the persistence layer.
func (b *Base) StampUpdated(at time.Time, by *int64) {
	b.UpdatedAt = at
	b.UpdatedBy = by
}

// StampDeleted marks the soft-delete transition.
func (b *Base) StampDeleted(at time.Time, by *int64) {
	b.IsDeleted = true
	b.DeletedAt = &at
	b.DeletedBy = by
	b.StampUpdated(at, by)
}

// StampRestored clears the soft-delete state.
func (b *Base) StampRestored(at time.Time, by *int64) {
	b.IsDeleted = false
	b.DeletedAt = nil
	b.DeletedBy = nil
	b.StampUpdated(at, by)
}

// Auditable is the capability every persisted entity satisfies by embedding Base.
// Generic repository and unit-of-work code works exclusively against it.
type Auditable interface {
	GetID() int64
	SetID(int64)
	Deleted() bool
	LastUpdatedAt() time.Time
	StampCreated(at time.Time, by *int64)
	StampUpdated(at time.Time, by *int64)
	StampDeleted(at time.Time, by *int64)
	StampRestored(at time.Time, by *int64)
}

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate() error
}
