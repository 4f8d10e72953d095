// internal/handlers/collection_handler.go
package handlers

import (
	"log/slog"
	"net/http"

	"nihongo_memo/internal/middleware"
	"nihongo_memo/internal/model"
	"nihongo_memo/internal/service"
	"nihongo_memo/internal/webutil"

	"github.com/go-chi/chi/v5"
)

// CollectionResponse は一覧取得のレスポンス
type CollectionResponse[T any] struct {
	Collection string `json:"collection"`
	State      string `json:"state"`
	Count      int    `json:"count"`
	Items      []T    `json:"items"`
}

// CollectionHandler は1つの学習コレクションの HTTP ハンドラです。
// リモートへの反映は待たずに応答します。
type CollectionHandler[T any, I any] struct {
	collection service.Collection[T, I]
	logger     *slog.Logger
}

func NewCollectionHandler[T any, I any](c service.Collection[T, I], logger *slog.Logger) *CollectionHandler[T, I] {
	if logger == nil {
		logger = slog.Default()
	}
	return &CollectionHandler[T, I]{
		collection: c,
		logger:     logger,
	}
}

// Routes は /{collection} 以下のルーティングを登録します
func (h *CollectionHandler[T, I]) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/sync", h.Sync)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}/memorized", h.ToggleMemorized)
}

func (h *CollectionHandler[T, I]) List(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context()).With(slog.String("collection", h.collection.Name()))

	items := h.collection.Snapshot()
	webutil.RespondWithJSON(w, http.StatusOK, CollectionResponse[T]{
		Collection: h.collection.Name(),
		State:      h.collection.State().String(),
		Count:      len(items),
		Items:      items,
	}, logger)
}

// Create は生成AIの出力 (単一オブジェクトまたは配列) を受け取り、先頭に追加します
func (h *CollectionHandler[T, I]) Create(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context()).With(
		slog.String("handler", "Create"),
		slog.String("collection", h.collection.Name()),
	)

	body, err := webutil.ReadBody(r)
	if err != nil {
		logger.Warn("Failed to read request body", slog.Any("error", err))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	inputs, err := service.DecodeInputs[I](body)
	if err != nil {
		logger.Warn("Failed to decode request body", slog.Any("error", err))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	created, _, err := h.collection.AddBatch(r.Context(), inputs)
	if err != nil {
		logger.Warn("Failed to add records", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Records created", slog.Int("count", len(created)))
	webutil.RespondWithJSON(w, http.StatusCreated, created, logger)
}

func (h *CollectionHandler[T, I]) Delete(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context()).With(
		slog.String("handler", "Delete"),
		slog.String("collection", h.collection.Name()),
	)
	id := chi.URLParam(r, "id")

	if _, err := h.collection.Delete(r.Context(), id); err != nil {
		logger.Warn("Failed to delete record", slog.String("id", id), slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionHandler[T, I]) ToggleMemorized(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context()).With(
		slog.String("handler", "ToggleMemorized"),
		slog.String("collection", h.collection.Name()),
	)
	id := chi.URLParam(r, "id")

	updated, _, err := h.collection.ToggleMemorized(r.Context(), id)
	if err != nil {
		logger.Warn("Failed to toggle memorized", slog.String("id", id), slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}
	webutil.RespondWithJSON(w, http.StatusOK, updated, logger)
}

// Sync はリモートからの再取得を開始します (完了は待たない)
func (h *CollectionHandler[T, I]) Sync(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context()).With(slog.String("collection", h.collection.Name()))

	h.collection.Refresh(r.Context())
	webutil.RespondWithJSON(w, http.StatusAccepted, map[string]string{
		"collection": h.collection.Name(),
		"state":      h.collection.State().String(),
	}, logger)
}
