package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/flowerdesk/internal/chatbot"
	"github.com/kalambet/flowerdesk/internal/inventory"
	"github.com/kalambet/flowerdesk/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (Deps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return Deps{
		Inventory: &mockInventory{},
		Marketing: mockMarketing{},
		Chat:      &mockChat{},
		Records:   store,
	}, store
}

func seedRecords(t *testing.T, store *storage.Store, products ...string) {
	t.Helper()
	base := time.Date(2024, 12, 1, 9, 0, 0, 0, time.UTC)
	for i, p := range products {
		_, err := store.Insert(context.Background(), storage.InventoryRecord{
			Timestamp: storage.Timestamp(base.Add(time.Duration(i) * time.Hour)),
			Product:   p,
			Factors:   "{}",
			Strategy:  "{}",
			Logistics: "{}",
		})
		if err != nil {
			t.Fatalf("insert %s: %v", p, err)
		}
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// --- tests ---

func TestMCPTool_AnalyzeInventory(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	inv := deps.Inventory.(*mockInventory)
	handler := mcpAnalyzeInventory(deps)

	req := makeCallToolRequest("analyze_inventory", map[string]interface{}{
		"product": "玫瑰",
		"city":    "上海",
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var p inventory.Payload
	if err := json.Unmarshal([]byte(toolText(t, result)), &p); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if p.Status != inventory.StatusSuccess {
		t.Errorf("status = %q", p.Status)
	}
	if inv.product != "玫瑰" || inv.city != "上海" {
		t.Errorf("analyzed %q/%q", inv.product, inv.city)
	}
}

func TestMCPTool_AnalyzeInventory_MissingProduct(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAnalyzeInventory(deps)

	result, err := handler(context.Background(), makeCallToolRequest("analyze_inventory", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing product")
	}
	if deps.Inventory.(*mockInventory).analyzed != 0 {
		t.Error("analysis ran without a product")
	}
}

func TestMCPTool_RecentRecords(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedRecords(t, store, "玫瑰", "百合", "郁金香")
	handler := mcpRecentRecords(deps)

	result, err := handler(context.Background(), makeCallToolRequest("recent_records", map[string]interface{}{
		"limit": 2,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var recs []storage.InventoryRecord
	if err := json.Unmarshal([]byte(toolText(t, result)), &recs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Product != "郁金香" {
		t.Errorf("first record = %q, want newest 郁金香", recs[0].Product)
	}
}

func TestMCPTool_RecentRecords_Empty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpRecentRecords(deps)

	result, err := handler(context.Background(), makeCallToolRequest("recent_records", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "[]" {
		t.Errorf("text = %q, want []", got)
	}
}

func TestMCPTool_RecentRecords_StoreError(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Records = failingRecords{}
	handler := mcpRecentRecords(deps)

	result, err := handler(context.Background(), makeCallToolRequest("recent_records", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestMCPTool_SearchRecords(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedRecords(t, store, "红玫瑰", "百合", "白玫瑰")
	handler := mcpSearchRecords(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_records", map[string]interface{}{
		"query": "玫瑰",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var recs []storage.InventoryRecord
	if err := json.Unmarshal([]byte(toolText(t, result)), &recs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, r := range recs {
		if !strings.Contains(r.Product, "玫瑰") {
			t.Errorf("unexpected product %q", r.Product)
		}
	}
}

func TestMCPTool_SearchRecords_MissingQuery(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpSearchRecords(deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_records", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing query")
	}
}

func TestMCPTool_MarketingPlan(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpMarketingPlan(deps)

	result, err := handler(context.Background(), makeCallToolRequest("marketing_plan", map[string]interface{}{
		"product": "玫瑰",
		"target":  "年轻情侣",
		"goal":    "情人节销量",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := toolText(t, result); got != "方案: 玫瑰/年轻情侣/情人节销量" {
		t.Errorf("text = %q", got)
	}
}

func TestMCPTool_MarketingPlan_MissingGoal(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpMarketingPlan(deps)

	result, err := handler(context.Background(), makeCallToolRequest("marketing_plan", map[string]interface{}{
		"product": "玫瑰",
		"target":  "年轻情侣",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "goal") {
		t.Errorf("text = %q, want mention of goal", toolText(t, result))
	}
}

func TestMCPTool_AskDocs(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	chat := deps.Chat.(*mockChat)
	handler := mcpAskDocs(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_docs", map[string]interface{}{
		"question":   "玫瑰怎么养?",
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ans chatbot.Answer
	if err := json.Unmarshal([]byte(toolText(t, result)), &ans); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if ans.SessionID != "s1" || ans.Reply != "答: 玫瑰怎么养?" {
		t.Errorf("answer = %+v", ans)
	}
	if chat.lastSID != "s1" {
		t.Errorf("session passed = %q", chat.lastSID)
	}
}

func TestMCPTool_AskDocs_Error(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Chat = &mockChat{askErr: errors.New("boom")}
	handler := mcpAskDocs(deps)

	result, err := handler(context.Background(), makeCallToolRequest("ask_docs", map[string]interface{}{
		"question": "hi",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
}

func TestNewMCPServer_RegistersConfiguredTools(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	s := NewMCPServer(deps, "test")

	tools := s.ListTools()
	for _, name := range []string{"analyze_inventory", "recent_records", "search_records", "marketing_plan", "ask_docs"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %q not registered", name)
		}
	}

	s = NewMCPServer(Deps{Records: deps.Records}, "test")
	tools = s.ListTools()
	if len(tools) != 2 {
		t.Errorf("expected only record tools, got %d", len(tools))
	}
	if _, ok := tools["analyze_inventory"]; ok {
		t.Error("analyze_inventory registered without an inventory service")
	}
}
