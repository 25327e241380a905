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

// FileHandler serves the file metadata endpoints.
type FileHandler struct {
	*BaseHandler
	factory *postgres.SessionFactory
	reg     *entity.Registry
	cache   *cache.EntityCache
}

// NewFileHandler creates a file handler.
func NewFileHandler(base *BaseHandler, factory *postgres.SessionFactory, reg *entity.Registry, ec *cache.EntityCache) *FileHandler {
	return &FileHandler{BaseHandler: base, factory: factory, reg: reg, cache: ec}
}

// RegisterRoutes wires the file endpoints.
func (h *FileHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.POST("", h.Create)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/restore", h.Restore)
	rg.POST("/bulk", h.BulkCreate)
}

func (h *FileHandler) repo(s *postgres.Session) *content_repo.FileRepo {
	return content_repo.Files(s, h.reg)
}

// List returns files, optionally scoped to ?folderId.
func (h *FileHandler) List(c *gin.Context) {
	s := h.factory.NewSession()
	defer s.Close(c.Request.Context())

	if folderID := int64(h.ParseIntQuery(c, "folderId", 0)); folderID > 0 {
		files, err := h.repo(s).ListByFolder(c.Request.Context(), folderID)
		if err != nil {
			h.Error(c, err)
			return
		}
		h.OK(c, files)
		return
	}

	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
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

// Get returns one file through the entity cache.
func (h *FileHandler) Get(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	file, err := cache.GetOrFetch(c.Request.Context(), h.cache, cache.EntityKey(content.TypeFile, id),
		func(ctx context.Context) (*content.File, error) {
			s := h.factory.NewSession()
			defer s.Close(ctx)
			return h.repo(s).GetByID(ctx, id)
		})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, file)
}

// Create registers file metadata.
func (h *FileHandler) Create(c *gin.Context) {
	var req dto.CreateFileRequest
	if !h.BindJSON(c, &req) {
		return
	}

	file := fileFromRequest(req)
	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		s := postgres.MustSession(ctx)
		exists, err := content_repo.Folders(s, h.reg).Exists(ctx, req.FolderID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewNotFound(content.TypeFolder, req.FolderID)
		}
		return h.repo(s).Create(ctx, file)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, file.ID)
}

// BulkCreate registers a batch of file metadata in one save.
func (h *FileHandler) BulkCreate(c *gin.Context) {
	var reqs []dto.CreateFileRequest
	if !h.BindJSON(c, &reqs) {
		return
	}

	files := make([]*content.File, 0, len(reqs))
	for _, req := range reqs {
		files = append(files, fileFromRequest(req))
	}

	var inserted int64
	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		var err error
		inserted, err = h.repo(postgres.MustSession(ctx)).BulkInsert(ctx, files)
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"inserted": inserted})
}

// Delete soft-deletes a file.
func (h *FileHandler) Delete(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		file, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return repo.SoftDelete(ctx, file)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Restore brings a soft-deleted file back.
func (h *FileHandler) Restore(c *gin.Context) {
	id, ok := h.ParseID(c)
	if !ok {
		return
	}

	err := h.factory.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		repo := h.repo(postgres.MustSession(ctx))
		file, err := (&content_repo.FileRepo{BaseRepo: repo.OnlyDeleted()}).GetByID(ctx, id)
		if err != nil {
			return err
		}
		return repo.Restore(ctx, file)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

func fileFromRequest(req dto.CreateFileRequest) *content.File {
	folderID := req.FolderID
	return &content.File{
		FolderID:   &folderID,
		Name:       req.Name,
		MimeType:   req.MimeType,
		SizeBytes:  req.SizeBytes,
		StorageKey: req.StorageKey,
	}
}
