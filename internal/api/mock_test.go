package api

import (
	"context"
	"errors"
	"sync"

	"github.com/kalambet/flowerdesk/internal/chatbot"
	"github.com/kalambet/flowerdesk/internal/inventory"
	"github.com/kalambet/flowerdesk/internal/kol"
	"github.com/kalambet/flowerdesk/internal/report"
	"github.com/kalambet/flowerdesk/internal/storage"
)

type mockInventory struct {
	mu       sync.Mutex
	product  string
	city     string
	status   string
	planErr  error
	analyzed int
}

func (m *mockInventory) Analyze(_ context.Context, product, city string) inventory.Payload {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.product, m.city = product, city
	m.analyzed++
	f := report.Empty()
	status := m.status
	if status == "" {
		status = inventory.StatusSuccess
	}
	return inventory.Payload{Factors: f.Factors, Strategy: f.Strategy, Logistics: f.Logistics, Status: status}
}

func (m *mockInventory) Plan(_ context.Context, product, _ string) (inventory.Plan, error) {
	if m.planErr != nil {
		return inventory.Plan{}, m.planErr
	}
	var p inventory.Plan
	p.Strategy.InventoryLevel = product + " 增加20%"
	return p, nil
}

type mockMarketing struct{}

func (mockMarketing) Generate(_ context.Context, product, target, goal string) string {
	return "方案: " + product + "/" + target + "/" + goal
}

func (mockMarketing) Refine(_ context.Context, plan, feedback string) string {
	return plan + " + " + feedback
}

type mockChat struct {
	mu      sync.Mutex
	texts   map[string]string
	urls    []string
	urlErr  error
	askErr  error
	lastSID string
}

func (m *mockChat) Ask(_ context.Context, sessionID, question string) (chatbot.Answer, error) {
	if m.askErr != nil {
		return chatbot.Answer{}, m.askErr
	}
	m.mu.Lock()
	m.lastSID = sessionID
	m.mu.Unlock()
	if sessionID == "" {
		sessionID = "new-session"
	}
	return chatbot.Answer{SessionID: sessionID, Reply: "答: " + question}, nil
}

func (m *mockChat) AddURL(_ context.Context, rawURL string) (int, error) {
	if m.urlErr != nil {
		return 0, m.urlErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = append(m.urls, rawURL)
	return 2, nil
}

func (m *mockChat) AddText(_ context.Context, source, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.texts == nil {
		m.texts = make(map[string]string)
	}
	m.texts[source] = text
	return 1, nil
}

type mockKOL struct{ category string }

func (m *mockKOL) Find(_ context.Context, category string) kol.Letter {
	m.category = category
	return kol.DefaultLetter(category)
}

type failingRecords struct{}

func (failingRecords) Recent(context.Context, int) ([]storage.InventoryRecord, error) {
	return nil, errors.New("disk on fire")
}

func (failingRecords) Search(context.Context, string, int) ([]storage.InventoryRecord, error) {
	return nil, errors.New("disk on fire")
}
