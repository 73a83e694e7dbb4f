package extract

import (
	"strings"
	"testing"
)

var weatherMarkers = []Marker{
	{Keyword: "天气特点", Key: "impact"},
	{Keyword: "消费者行为", Key: "behavior_changes"},
	{Keyword: "需求预期", Key: "demand_forecast"},
	{Keyword: "应对策略", Key: "recommendations"},
}

func TestExtractMarkedLines(t *testing.T) {
	text := `以下是分析：
1. 天气特点对需求的影响：春季气温回升，鲜花需求增加
2. 消费者行为变化：户外活动增多
更多人选择花束作为礼物
3. 需求预期变化：预计增长20%
4. 建议的应对策略：提前备货`

	got := Extract(text, weatherMarkers)
	want := map[string]string{
		"impact":           "春季气温回升，鲜花需求增加",
		"behavior_changes": "户外活动增多\n更多人选择花束作为礼物",
		"demand_forecast":  "预计增长20%",
		"recommendations":  "提前备货",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestExtractNoMarkersYieldsAllEmpty(t *testing.T) {
	inputs := []string{"", "完全无关的文本\n第二行", "\n\n\n", "：：："}
	for _, in := range inputs {
		got := Extract(in, weatherMarkers)
		if len(got) != len(weatherMarkers) {
			t.Fatalf("len = %d, want %d", len(got), len(weatherMarkers))
		}
		for k, v := range got {
			if v != "" {
				t.Errorf("input %q: %s = %q, want empty", in, k, v)
			}
		}
	}
}

func TestExtractLineWithoutSeparatorKeepsWholeLine(t *testing.T) {
	got := Extract("天气特点 晴朗少雨", weatherMarkers)
	if got["impact"] != "天气特点 晴朗少雨" {
		t.Errorf("impact = %q", got["impact"])
	}
}

func TestExtractEachMatchedMarkerNonEmpty(t *testing.T) {
	text := "天气特点：\n晴\n消费者行为：多"
	got := Extract(text, weatherMarkers)
	if got["impact"] != "晴" {
		t.Errorf("impact = %q, want continuation line", got["impact"])
	}
	if got["behavior_changes"] != "多" {
		t.Errorf("behavior_changes = %q", got["behavior_changes"])
	}
}

func TestExtractFirstMarkerWins(t *testing.T) {
	markers := []Marker{{Keyword: "库存", Key: "a"}, {Keyword: "库存水平", Key: "b"}}
	got := Extract("建议库存水平：500件", markers)
	if got["a"] != "500件" || got["b"] != "" {
		t.Errorf("got %v, want marker order to decide", got)
	}
}

func TestExtractRepeatedKeyAppends(t *testing.T) {
	got := Extract("天气特点：一\n天气特点：二", weatherMarkers)
	if got["impact"] != "一\n二" {
		t.Errorf("impact = %q", got["impact"])
	}
}

func TestExtractCustomSeparator(t *testing.T) {
	e := Extractor{Markers: weatherMarkers, Separator: ":"}
	got := e.Extract("天气特点: sunny")
	if got["impact"] != "sunny" {
		t.Errorf("impact = %q", got["impact"])
	}
}

func TestExtractParagraphs(t *testing.T) {
	e := Extractor{
		Markers:    []Marker{{Keyword: "春节", Key: "spring"}, {Keyword: "情人节", Key: "valentine"}},
		Paragraphs: true,
	}
	text := "概述\n\n春节：需求上升\n年宵花热销\n\n补充说明\n\n情人节：玫瑰紧俏"
	got := e.Extract(text)
	if got["spring"] != "需求上升\n年宵花热销\n补充说明" {
		t.Errorf("spring = %q", got["spring"])
	}
	if got["valentine"] != "玫瑰紧俏" {
		t.Errorf("valentine = %q", got["valentine"])
	}
}

func TestSectionsOrder(t *testing.T) {
	e := Extractor{Markers: weatherMarkers}
	secs := e.Sections("应对策略：备货\n天气特点：热")
	if len(secs) != 2 || secs[0].Key != "recommendations" || secs[1].Key != "impact" {
		t.Errorf("sections = %+v", secs)
	}
}

func TestLinesAndParagraphs(t *testing.T) {
	text := " a \r\n\r\n b\nc \n\n\n d"
	if got := strings.Join(Lines(text), "|"); got != "a|b|c|d" {
		t.Errorf("Lines = %q", got)
	}
	if got := strings.Join(Paragraphs(text), "|"); got != "a|b\nc|d" {
		t.Errorf("Paragraphs = %q", got)
	}
}
