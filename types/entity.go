package types

import "time"

// Entity carries creation and modification timestamps. Timestamps come from
// the engine clock, never from time.Now directly, so that tests can control
// them.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates an Entity stamped at now (normalized to UTC).
func NewEntity(now time.Time) Entity {
	now = now.UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch sets UpdatedAt to now.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}
