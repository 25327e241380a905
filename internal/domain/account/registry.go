package account

import (
	"papyrus/internal/core/entity"
)

// TypeUser is the entity type name for users.
const TypeUser = "user"

// RegisterAll registers account entity types.
func RegisterAll(reg *entity.Registry) {
	entity.MustRegister[*User](reg, entity.Definition{Name: TypeUser, Table: "cms_users"})
}
