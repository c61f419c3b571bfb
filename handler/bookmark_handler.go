package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zentala/bookmark-index/service"
	"github.com/zentala/bookmark-index/types"
)

type BookmarkHandler struct {
	indexService *service.IndexService
	defaultK     int
}

func NewBookmarkHandler(indexService *service.IndexService, defaultK int) *BookmarkHandler {
	if defaultK <= 0 {
		defaultK = 10
	}
	return &BookmarkHandler{
		indexService: indexService,
		defaultK:     defaultK,
	}
}

// HandleIndex indexes a bookmark tree. The request's confirm flag answers
// the confirmation gate, so a request without it only reports what would
// be embedded.
func (h *BookmarkHandler) HandleIndex(c *gin.Context) {
	var req types.IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}

	result, err := h.indexService.AddBookmarks(c.Request.Context(), req.Tree, service.ConfirmWith(confirmFlag(req.Confirm)))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   result.Summary,
	})
}

func (h *BookmarkHandler) HandleSearch(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid query parameters",
		})
		return
	}
	if req.K == 0 {
		req.K = h.defaultK
	}

	var (
		results []types.RankedResult
		err     error
	)
	switch req.Mode {
	case "", types.SearchModeHybrid:
		results, err = h.indexService.SimilaritySearch(c.Request.Context(), req.Query, req.K)
	case types.SearchModeLexical:
		results, err = h.indexService.LexicalSearch(c.Request.Context(), req.Query, req.K)
	default:
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Unknown search mode",
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   types.SearchResponse{Results: results},
	})
}

func (h *BookmarkHandler) HandleRegenerate(c *gin.Context) {
	var req types.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}

	result, err := h.indexService.RegenerateEmbeddings(c.Request.Context(), service.ConfirmWith(confirmFlag(req.Confirm)))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   result.Summary,
	})
}

func (h *BookmarkHandler) HandleDelete(c *gin.Context) {
	id := c.Param("id")
	removed, err := h.indexService.DeleteBookmarks(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if removed == 0 {
		c.JSON(http.StatusNotFound, types.DataResponse{
			Status:  false,
			Message: "Bookmark not indexed",
		})
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status:  true,
		Message: "Bookmark removed",
	})
}

func (h *BookmarkHandler) HandleStats(c *gin.Context) {
	stats, err := h.indexService.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   stats,
	})
}

func confirmFlag(confirm bool) service.Confirmer {
	return service.ConfirmFunc(func(context.Context, []types.FlattenedBookmark) (bool, error) {
		return confirm, nil
	})
}

func respondError(c *gin.Context, err error) {
	c.JSON(errorStatus(err), types.DataResponse{
		Status:  false,
		Message: err.Error(),
	})
}

func errorStatus(err error) int {
	var (
		providerErr   *service.ProviderError
		generationErr *service.GenerationError
		configErr     *service.ConfigError
	)
	switch {
	case errors.Is(err, service.ErrEmptyQuery), errors.Is(err, service.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotInitialized), errors.Is(err, service.ErrIndexingInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &generationErr), errors.As(err, &providerErr):
		return http.StatusBadGateway
	case errors.As(err, &configErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
