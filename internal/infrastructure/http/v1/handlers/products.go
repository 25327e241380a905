package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/internal/domain/content"
	"papyrus/internal/infrastructure/cache"
	"papyrus/internal/infrastructure/http/v1/dto"
	"papyrus/internal/infrastructure/storage/postgres"
	"papyrus/internal/infrastructure/storage/postgres/content_repo"
)

// ProductHandler serves the product endpoints.
type ProductHandler struct {
	*BaseHandler
	factory *postgres.SessionFactory
	reg     *entity.Registry
	cache   *cache.EntityCache
}

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, factory *postgres.SessionFactory, reg *entity.Registry, ec *cache.EntityCache) *ProductHandler {
	return &ProductHandler{BaseHandler: base, factory: factory, reg: reg, cache: ec}
}

// RegisterRoutes wires the product endpoints.
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/sku/:sku", h.GetBySKU)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/restore", h.Restore)
}

func (h *ProductHandler) repo(s *postgres.Session) *content_repo.ProductRepo {
	return content_repo.Products(s, h.reg)
}

// List returns products matching the query.
func (h *ProductHandler) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	result, err := h.repo(s).List(c.Request.Context(), content_repo.ListFilter{
		Search:  q.Search,
		Limit:   q.Limit,
		Offset:  q.Offset,
		OrderBy: q.OrderBy,
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get returns one product through the entity cache.
func (h *ProductHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	product, err := cache.GetOrFetch(c.Request.Context(), h.cache, cache.EntityKey(content.TypeProduct, id),
		func(ctx context.Context) (*content.Product, error) {
			s := h.factory.NewSession()
			defer s.Close(ctx)
			return h.repo(s).GetByID(ctx, id)
		})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, product)
}

// GetBySKU returns one live product by SKU.
func (h *ProductHandler) GetBySKU(c *gin.Context) {
	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	product, err := h.repo(s).GetBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, product)
}

// Create creates a product.
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	product := &content.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		if _, err := repo.GetBySKU(ctx, req.SKU); err == nil {
			return apperror.NewDuplicate("product", "sku", req.SKU)
		} else if !apperror.IsNotFound(err) {
			return err
		}
		return repo.Create(ctx, product)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, product.ID)
}

// Update replaces a product's mutable fields. SKU is immutable.
func (h *ProductHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		product, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		product.Name = req.Name
		product.Description = req.Description
		product.Price = req.Price
		return repo.Update(ctx, product)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Delete soft-deletes a product.
func (h *ProductHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		product, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return repo.SoftDelete(ctx, product)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Restore brings a soft-deleted product back.
func (h *ProductHandler) Restore(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		product, err := (&content_repo.ProductRepo{BaseRepo: repo.OnlyDeleted()}).GetByID(ctx, id)
		if err != nil {
			return err
		}
		return repo.Restore(ctx, product)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
