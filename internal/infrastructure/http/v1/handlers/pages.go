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

// PageHandler serves the page endpoints.
type PageHandler struct {
	*BaseHandler
	factory *postgres.SessionFactory
	reg     *entity.Registry
	cache   *cache.EntityCache
}

// NewPageHandler creates a page handler.
func NewPageHandler(base *BaseHandler, factory *postgres.SessionFactory, reg *entity.Registry, ec *cache.EntityCache) *PageHandler {
	return &PageHandler{BaseHandler: base, factory: factory, reg: reg, cache: ec}
}

// RegisterRoutes wires the page endpoints.
func (h *PageHandler) RegisterRoutes(rg *gin.RouterGroup, admin gin.HandlerFunc) {
	rg.GET("", h.List)
	rg.GET("/published", h.ListPublished)
	rg.GET("/:id", h.Get)
	rg.GET("/slug/:slug", h.GetBySlug)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/restore", h.Restore)
	rg.POST("/:id/publish", h.Publish)
	rg.POST("/:id/unpublish", h.Unpublish)
	rg.DELETE("/:id/purge", admin, h.Purge)
}

func (h *PageHandler) repo(s *postgres.Session) *content_repo.PageRepo {
	return content_repo.Pages(s, h.reg)
}

// List returns pages matching the query.
func (h *PageHandler) List(c *gin.Context) {
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	includeDeleted := c.Query("includeDeleted") == "true"
	repo := h.repo(s)
	if includeDeleted {
		repo = &content_repo.PageRepo{BaseRepo: repo.IncludeDeleted()}
	}

	result, err := repo.List(c.Request.Context(), content_repo.ListFilter{
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

// ListPublished returns the published pages, newest first.
func (h *PageHandler) ListPublished(c *gin.Context) {
	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	pages, err := h.repo(s).ListPublished(c.Request.Context(),
		h.ParseIntQuery(c, "limit", 50),
		h.ParseIntQuery(c, "offset", 0))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, pages)
}

// Get returns one page through the entity cache.
func (h *PageHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	page, err := cache.GetOrFetch(c.Request.Context(), h.cache, cache.EntityKey(content.TypePage, id),
		func(ctx context.Context) (*content.Page, error) {
			s := h.factory.NewSession()
			defer s.Close(ctx)
			return h.repo(s).GetByID(ctx, id)
		})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, page)
}

// GetBySlug returns one live page by slug.
func (h *PageHandler) GetBySlug(c *gin.Context) {
	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	page, err := h.repo(s).GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, page)
}

// Create creates a page.
func (h *PageHandler) Create(c *gin.Context) {
	var req dto.CreatePageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	page := &content.Page{
		Slug:  req.Slug,
		Title: req.Title,
		Body:  req.Body,
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		taken, err := repo.SlugTaken(ctx, page.Slug, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperror.NewDuplicate("page", "slug", page.Slug)
		}
		return repo.Create(ctx, page)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, page.ID)
}

// Update replaces a page's content.
func (h *PageHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdatePageRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		page, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Slug != page.Slug {
			taken, err := repo.SlugTaken(ctx, req.Slug, id)
			if err != nil {
				return err
			}
			if taken {
				return apperror.NewDuplicate("page", "slug", req.Slug)
			}
		}
		page.Slug = req.Slug
		page.Title = req.Title
		page.Body = req.Body
		return repo.Update(ctx, page)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Delete soft-deletes a page.
func (h *PageHandler) Delete(c *gin.Context) {
	h.transition(c, func(ctx context.Context, repo *content_repo.PageRepo, page *content.Page) error {
		return repo.SoftDelete(ctx, page)
	}, false)
}

// Restore brings a soft-deleted page back.
func (h *PageHandler) Restore(c *gin.Context) {
	h.transition(c, func(ctx context.Context, repo *content_repo.PageRepo, page *content.Page) error {
		return repo.Restore(ctx, page)
	}, true)
}

// Publish marks a page published.
func (h *PageHandler) Publish(c *gin.Context) {
	h.transition(c, func(ctx context.Context, repo *content_repo.PageRepo, page *content.Page) error {
		page.Publish()
		return repo.Update(ctx, page)
	}, false)
}

// Unpublish withdraws a page.
func (h *PageHandler) Unpublish(c *gin.Context) {
	h.transition(c, func(ctx context.Context, repo *content_repo.PageRepo, page *content.Page) error {
		page.Unpublish()
		return repo.Update(ctx, page)
	}, false)
}

// Purge physically removes a page. Admin only.
func (h *PageHandler) Purge(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	repo := &content_repo.PageRepo{BaseRepo: h.repo(s).IncludeDeleted()}
	if err := repo.HardDelete(c.Request.Context(), id); err != nil {
		h.Error(c, err)
		return
	}
	h.cache.Delete(cache.EntityKey(content.TypePage, id))
	h.cache.Delete(cache.ListKey(content.TypePage))
	h.NoContent(c)
}

// transition loads the page (from the deleted set when fromDeleted) and
// applies fn inside one transaction.
func (h *PageHandler) transition(c *gin.Context, fn func(context.Context, *content_repo.PageRepo, *content.Page) error, fromDeleted bool) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		lookup := repo
		if fromDeleted {
			lookup = &content_repo.PageRepo{BaseRepo: repo.OnlyDeleted()}
		}
		page, err := lookup.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fn(ctx, repo, page)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
