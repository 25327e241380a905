package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"papyrus/internal/core/apperror"
	"papyrus/internal/core/entity"
	"papyrus/internal/domain/content"
	"papyrus/internal/infrastructure/cache"
	"papyrus/internal/infrastructure/http/v1/dto"
	"papyrus/internal/infrastructure/storage/postgres"
	"papyrus/internal/infrastructure/storage/postgres/content_repo"
)

// FolderHandler serves the folder endpoints.
type FolderHandler struct {
	*BaseHandler
	factory *postgres.SessionFactory
	reg     *entity.Registry
	cache   *cache.EntityCache
}

// NewFolderHandler creates a folder handler.
func NewFolderHandler(base *BaseHandler, factory *postgres.SessionFactory, reg *entity.Registry, ec *cache.EntityCache) *FolderHandler {
	return &FolderHandler{BaseHandler: base, factory: factory, reg: reg, cache: ec}
}

// RegisterRoutes wires the folder endpoints.
func (h *FolderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/children", h.Children)
	rg.GET("/:id/tree", h.Tree)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/restore", h.Restore)
}

func (h *FolderHandler) repo(s *postgres.Session) *content_repo.FolderRepo {
	return content_repo.Folders(s, h.reg)
}

// List returns root folders, or children of ?parentId.
func (h *FolderHandler) List(c *gin.Context) {
	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	var parentID *int64
	if raw := c.Query("parentId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid parentId").WithDetail("parentId", raw))
			return
		}
		parentID = &id
	}

	folders, err := h.repo(s).Children(c.Request.Context(), parentID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, folders)
}

// Get returns one folder through the entity cache.
func (h *FolderHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	folder, err := cache.GetOrFetch(c.Request.Context(), h.cache, cache.EntityKey(content.TypeFolder, id),
		func(ctx context.Context) (*content.Folder, error) {
			s := h.factory.NewSession()
			defer s.Close(ctx)
			return h.repo(s).GetByID(ctx, id)
		})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, folder)
}

// Children lists the direct children of a folder.
func (h *FolderHandler) Children(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	folders, err := h.repo(s).Children(c.Request.Context(), &id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, folders)
}

// Tree returns the folder and all its live descendants.
func (h *FolderHandler) Tree(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	folders, err := h.repo(s).Subtree(c.Request.Context(), id)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, folders)
}

// Create creates a folder.
func (h *FolderHandler) Create(c *gin.Context) {
	var req dto.CreateFolderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	folder := &content.Folder{
		Name:     req.Name,
		ParentID: req.ParentID,
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		if req.ParentID != nil {
			exists, err := repo.Exists(ctx, *req.ParentID)
			if err != nil {
				return err
			}
			if !exists {
				return apperror.NewNotFound(content.TypeFolder, *req.ParentID)
			}
		}
		return repo.Create(ctx, folder)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, folder.ID)
}

// Update renames or moves a folder.
func (h *FolderHandler) Update(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdateFolderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		folder, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.ParentID != nil && *req.ParentID == id {
			return apperror.NewValidation("folder cannot be its own parent")
		}
		folder.Name = req.Name
		folder.ParentID = req.ParentID
		return repo.Update(ctx, folder)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Delete soft-deletes an empty folder.
func (h *FolderHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		folder, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		empty, err := repo.IsEmpty(ctx, id)
		if err != nil {
			return err
		}
		if !empty {
			return apperror.NewConflict("folder is not empty").WithDetail("id", id)
		}
		return repo.SoftDelete(ctx, folder)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Restore brings a soft-deleted folder back.
func (h *FolderHandler) Restore(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		folder, err := (&content_repo.FolderRepo{BaseRepo: repo.OnlyDeleted()}).GetByID(ctx, id)
		if err != nil {
			return err
		}
		return repo.Restore(ctx, folder)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}
