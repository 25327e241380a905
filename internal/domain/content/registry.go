package content

import (
	"papyrus/internal/core/entity"
)

// Entity type names used in change records, audit entries and cache keys.
const (
	TypeFolder  = "folder"
	TypeFile    = "file"
	TypePage    = "page"
	TypeProduct = "product"
)

// RegisterAll registers every content entity type. Called once at startup,
// before the soft-delete filters are installed over the registry.
func RegisterAll(reg *entity.Registry) {
	entity.MustRegister[*Folder](reg, entity.Definition{Name: TypeFolder, Table: "cms_folders"})
	entity.MustRegister[*File](reg, entity.Definition{Name: TypeFile, Table: "cms_files"})
	entity.MustRegister[*Page](reg, entity.Definition{Name: TypePage, Table: "cms_pages"})
	entity.MustRegister[*Product](reg, entity.Definition{Name: TypeProduct, Table: "cms_products"})
}
