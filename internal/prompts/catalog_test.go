package prompts

import (
	"strings"
	"testing"
)

func TestEmbeddedCatalogHasAllTemplates(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, name := range []string{
		WeatherImpact, SocialTrends, SeasonalEvents, GenericTask,
		InventoryStrategy, LogisticsPlan, MarketingGenerate, MarketingRefine,
		ChatSystem, KOLLookup, KOLLetter,
	} {
		if !c.Has(name) {
			t.Errorf("missing template %s", name)
		}
	}
}

func TestRenderWeather(t *testing.T) {
	c := MustLoad()
	out, err := c.Render(WeatherImpact, struct{ Product, Location, Season string }{"玫瑰", "北京", "春季"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"产品: 玫瑰", "地区: 北京", "季节: 春季", "天气特点"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered prompt missing %q", want)
		}
	}
}

func TestRenderGenericTaskContext(t *testing.T) {
	c := MustLoad()
	data := struct {
		Objective, Task string
		Context         []string
	}{"玫瑰 北京地区库存策略", "库存策略综合制定", []string{"天气与节假日影响分析"}}

	out, err := c.Render(GenericTask, data)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "- 天气与节假日影响分析") {
		t.Errorf("context not rendered:\n%s", out)
	}

	data.Context = nil
	out, err = c.Render(GenericTask, data)
	if err != nil {
		t.Fatalf("Render without context: %v", err)
	}
	if strings.Contains(out, "已完成的相关任务") {
		t.Error("empty context should omit the section")
	}
}

func TestRenderUnknownAndMissingKey(t *testing.T) {
	c, err := Parse([]byte("greet: \"你好 {{.Name}}\"\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := c.Render("absent", nil); err == nil {
		t.Error("expected error for unknown template")
	}
	if _, err := c.Render("greet", map[string]string{}); err == nil {
		t.Error("expected error for missing key")
	}
	out, err := c.Render("greet", map[string]string{"Name": "小明"})
	if err != nil || out != "你好 小明" {
		t.Errorf("Render = %q, %v", out, err)
	}
}

func TestParseRejectsBadTemplate(t *testing.T) {
	if _, err := Parse([]byte("bad: \"{{.Oops\"\n")); err == nil {
		t.Error("expected template parse error")
	}
}
