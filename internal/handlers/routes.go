package handlers

import (
	"log/slog"

	"nihongo_memo/internal/model"
	"nihongo_memo/internal/service"

	"github.com/go-chi/chi/v5"
)

// APIRoutes は /api/v1 以下のルーティングを返します
func APIRoutes(lib *service.Library, settings *SettingsHandler, logger *slog.Logger) func(chi.Router) {
	return func(r chi.Router) {
		r.Route("/"+model.CollectionVocabulary, NewCollectionHandler[model.VocabularyEntry, model.VocabularyInput](lib.Vocabulary, logger).Routes)
		r.Route("/"+model.CollectionGrammar, NewCollectionHandler[model.GrammarEntry, model.GrammarInput](lib.Grammar, logger).Routes)
		r.Route("/"+model.CollectionAdjectives, NewCollectionHandler[model.AdjectiveEntry, model.AdjectiveInput](lib.Adjectives, logger).Routes)
		r.Route("/"+model.CollectionDialogues, NewCollectionHandler[model.DialogueEntry, model.DialogueInput](lib.Dialogues, logger).Routes)

		r.Get("/settings", settings.GetSettings)
		r.Put("/settings", settings.PutSettings)

		r.Get("/session", settings.GetSession)
		r.Put("/session", settings.PutSession)
		r.Delete("/session", settings.DeleteSession)
	}
}
