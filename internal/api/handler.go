// Package api exposes the inventory, marketing, chat and KOL services over
// HTTP and as MCP tools.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/flowerdesk/internal/chatbot"
	"github.com/kalambet/flowerdesk/internal/inventory"
	"github.com/kalambet/flowerdesk/internal/kol"
	"github.com/kalambet/flowerdesk/internal/storage"
)

// InventoryService runs analyses and plans.
type InventoryService interface {
	Analyze(ctx context.Context, product, city string) inventory.Payload
	Plan(ctx context.Context, product, analysis string) (inventory.Plan, error)
}

// MarketingAgent writes marketing plans.
type MarketingAgent interface {
	Generate(ctx context.Context, product, target, goal string) string
	Refine(ctx context.Context, plan, feedback string) string
}

// ChatBot answers questions and ingests documents.
type ChatBot interface {
	Ask(ctx context.Context, sessionID, question string) (chatbot.Answer, error)
	AddURL(ctx context.Context, rawURL string) (int, error)
	AddText(ctx context.Context, source, text string) (int, error)
}

// KOLFinder finds influencers for a category.
type KOLFinder interface {
	Find(ctx context.Context, category string) kol.Letter
}

// RecordReader lists stored analyses.
type RecordReader interface {
	Recent(ctx context.Context, limit int) ([]storage.InventoryRecord, error)
	Search(ctx context.Context, substr string, limit int) ([]storage.InventoryRecord, error)
}

// Deps holds the services behind the API. Any service may be nil; its
// routes then answer 503.
type Deps struct {
	Inventory InventoryService
	Marketing MarketingAgent
	Chat      ChatBot
	KOL       KOLFinder
	Records   RecordReader
	// APIKey guards /api/*. Empty disables the check.
	APIKey string
	Logger *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// NewHandler returns the HTTP API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Post("/inventory/analyze", handleAnalyze(deps))
	r.Post("/inventory/plan", handlePlan(deps))
	r.Post("/marketing/generate", handleMarketingGenerate(deps))
	r.Post("/marketing/refine", handleMarketingRefine(deps))
	r.Post("/chat", handleChat(deps))
	r.Post("/process", handleProcess(deps))

	r.Route("/api", func(r chi.Router) {
		r.Use(APIKeyAuth(deps.APIKey))
		r.Get("/records", handleRecentRecords(deps))
		r.Get("/records/search", handleSearchRecords(deps))
		r.Post("/docs", handleAddDoc(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func unavailable(w http.ResponseWriter, name string) {
	httpError(w, http.StatusServiceUnavailable, "api_error", "%s is not configured", name)
}

type analyzeRequest struct {
	Product string `json:"product" validate:"required,max=100"`
	City    string `json:"city" validate:"max=50"`
}

// handleAnalyze answers 200 even when the analysis failed; the payload's
// status tells the caller.
func handleAnalyze(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Inventory == nil {
			unavailable(w, "inventory analysis")
			return
		}
		var req analyzeRequest
		// A body that is not JSON still gets the analysis shape.
		if err := decodeBody(w, r, &req); err != nil {
			if !errors.Is(err, errBodyTooLarge) {
				deps.logger().Warn("malformed analyze request", "error", err,
					"request_id", middleware.GetReqID(r.Context()))
				writeJSON(w, inventory.ErrorPayload())
			}
			return
		}
		if !validateRequest(w, &req) {
			return
		}
		p := deps.Inventory.Analyze(r.Context(), strings.TrimSpace(req.Product), strings.TrimSpace(req.City))
		deps.logger().Info("inventory analyzed", "product", req.Product, "city", req.City, "status", p.Status,
			"request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, p)
	}
}

type planRequest struct {
	Product  string `json:"product" validate:"required,max=100"`
	Analysis string `json:"analysis"`
}

type planResponse struct {
	inventory.Plan
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func handlePlan(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Inventory == nil {
			unavailable(w, "inventory planning")
			return
		}
		var req planRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		plan, err := deps.Inventory.Plan(r.Context(), req.Product, req.Analysis)
		resp := planResponse{Plan: plan, Status: inventory.StatusSuccess}
		if err != nil {
			deps.logger().Error("inventory planning failed", "product", req.Product, "error", err)
			resp.Status = inventory.StatusError
			resp.Error = err.Error()
		}
		writeJSON(w, resp)
	}
}

type marketingGenerateRequest struct {
	Product string `json:"product" validate:"required"`
	Target  string `json:"target" validate:"required"`
	Goal    string `json:"goal" validate:"required"`
}

func handleMarketingGenerate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Marketing == nil {
			unavailable(w, "marketing")
			return
		}
		var req marketingGenerateRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		plan := deps.Marketing.Generate(r.Context(), req.Product, req.Target, req.Goal)
		writeJSON(w, map[string]string{"plan": plan})
	}
}

type marketingRefineRequest struct {
	Plan     string `json:"plan" validate:"required"`
	Feedback string `json:"feedback" validate:"required"`
}

func handleMarketingRefine(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Marketing == nil {
			unavailable(w, "marketing")
			return
		}
		var req marketingRefineRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		plan := deps.Marketing.Refine(r.Context(), req.Plan, req.Feedback)
		writeJSON(w, map[string]string{"plan": plan})
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id" validate:"max=64"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Chat == nil {
			unavailable(w, "chat")
			return
		}
		var req chatRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "消息不能为空")
			return
		}
		ans, err := deps.Chat.Ask(r.Context(), req.SessionID, req.Message)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "chat failed: %v", err)
			return
		}
		writeJSON(w, ans)
	}
}

type processRequest struct {
	Category string `json:"category"`
}

// handleProcess accepts the category as JSON or as a form field.
func handleProcess(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.KOL == nil {
			unavailable(w, "kol discovery")
			return
		}
		var category string
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var req processRequest
			if !decodeRequest(w, r, &req) {
				return
			}
			category = req.Category
		} else {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
			category = r.FormValue("category")
		}
		category = strings.TrimSpace(category)
		if category == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "类目不能为空")
			return
		}
		writeJSON(w, deps.KOL.Find(r.Context(), category))
	}
}
