package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kalambet/flowerdesk/internal/storage"
)

const maxRecordLimit = 100

func handleRecentRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Records == nil {
			unavailable(w, "records")
			return
		}
		limit := parseIntParam(r, "limit", storage.DefaultRecentLimit, maxRecordLimit)

		recs, err := deps.Records.Recent(r.Context(), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list records: %v", err)
			return
		}
		if recs == nil {
			recs = []storage.InventoryRecord{}
		}
		writeJSON(w, recs)
	}
}

func handleSearchRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Records == nil {
			unavailable(w, "records")
			return
		}
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		limit := parseIntParam(r, "limit", storage.DefaultSearchLimit, maxRecordLimit)

		recs, err := deps.Records.Search(r.Context(), q, limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to search records: %v", err)
			return
		}
		if recs == nil {
			recs = []storage.InventoryRecord{}
		}
		writeJSON(w, recs)
	}
}

type addDocRequest struct {
	URL    string `json:"url" validate:"required_without=Text,omitempty,url"`
	Text   string `json:"text" validate:"required_without=URL"`
	Source string `json:"source" validate:"max=200"`
}

func handleAddDoc(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Chat == nil {
			unavailable(w, "chat")
			return
		}
		var req addDocRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		if req.URL != "" {
			n, err := deps.Chat.AddURL(r.Context(), req.URL)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to ingest url: %v", err)
				return
			}
			writeJSON(w, map[string]any{"source": req.URL, "chunks": n})
			return
		}

		source := req.Source
		if source == "" {
			source = "api/" + uuid.NewString()
		}
		n, err := deps.Chat.AddText(r.Context(), source, req.Text)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to ingest text: %v", err)
			return
		}
		writeJSON(w, map[string]any{"source": source, "chunks": n})
	}
}
