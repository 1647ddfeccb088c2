package services

import (
	"testing"

	"exclusivelink/internal/models"
)

func linearFlow(flowData string) models.Automation {
	return models.Automation{FlowData: flowData, Trigger: models.TriggerDMKeyword, IsActive: true}
}

func TestMatchAutomation_CaseInsensitive(t *testing.T) {
	candidates := []models.Automation{
		linearFlow(`{"type":"linear","keywords":["preço"],"responseMessage":"Segue!"}`),
	}
	result, ok := MatchAutomation("Eu quero o PREÇO", candidates)
	if !ok {
		t.Fatal("expected a match")
	}
	if result.Flow.ResponseMessage != "Segue!" {
		t.Errorf("unexpected flow: %+v", result.Flow)
	}
}

func TestMatchAutomation_FirstMatchWins(t *testing.T) {
	a := linearFlow(`{"type":"linear","keywords":["link"],"responseMessage":"A"}`)
	a.ID = 1
	b := linearFlow(`{"type":"linear","keywords":["link"],"responseMessage":"B"}`)
	b.ID = 2

	// 顺序是契约：重复运行必须稳定命中首个候选
	for i := 0; i < 50; i++ {
		result, ok := MatchAutomation("me manda o link", []models.Automation{a, b})
		if !ok {
			t.Fatal("expected a match")
		}
		if result.Automation.ID != 1 {
			t.Fatalf("run %d: expected automation 1, got %d", i, result.Automation.ID)
		}
	}
}

func TestMatchAutomation_EmptyKeywordNeverMatches(t *testing.T) {
	candidates := []models.Automation{
		linearFlow(`{"type":"linear","keywords":[""],"responseMessage":"X"}`),
		linearFlow(`{"type":"linear","keywords":["   "],"responseMessage":"Y"}`),
	}
	for _, msg := range []string{"", "qualquer coisa"} {
		if _, ok := MatchAutomation(msg, candidates); ok {
			t.Errorf("message %q should not match empty keywords", msg)
		}
	}
}

func TestMatchAutomation_EmptyMessageOrKeywordList(t *testing.T) {
	candidates := []models.Automation{
		linearFlow(`{"type":"linear","keywords":["link"]}`),
	}
	if _, ok := MatchAutomation("", candidates); ok {
		t.Error("empty message should never match")
	}
	if _, ok := MatchAutomation("link", []models.Automation{linearFlow(`{"type":"linear","keywords":[]}`)}); ok {
		t.Error("empty keyword list should never match")
	}
}

func TestMatchAutomation_LegacyGraphShapeSkipped(t *testing.T) {
	graph := linearFlow(`{"nodes":[{"id":"n1"}],"edges":[]}`)
	fallback := linearFlow(`{"type":"linear","keywords":["preço"],"responseMessage":"ok"}`)

	// 图形结构永不入选，即使消息内容任意
	if _, ok := MatchAutomation("nodes edges preço", []models.Automation{graph}); ok {
		t.Error("graph-shaped flow should never be selected")
	}

	// 排在前面的图形结构被跳过，后面的线性流程仍可命中
	result, ok := MatchAutomation("qual o preço?", []models.Automation{graph, fallback})
	if !ok {
		t.Fatal("expected linear candidate to match")
	}
	if result.Flow.ResponseMessage != "ok" {
		t.Errorf("unexpected match: %+v", result.Flow)
	}
}

func TestMatchAutomation_MalformedFlowSkipped(t *testing.T) {
	candidates := []models.Automation{
		linearFlow(""),
		linearFlow("not-json"),
		linearFlow(`{"type":"linear","keywords":"not-an-array"}`),
		linearFlow(`{"type":"linear","keywords":["oi"],"responseMessage":"valid"}`),
	}
	result, ok := MatchAutomation("oi tudo bem", candidates)
	if !ok {
		t.Fatal("expected the valid candidate to match")
	}
	if result.Flow.ResponseMessage != "valid" {
		t.Errorf("unexpected match: %+v", result.Flow)
	}
}

func TestMatchAutomation_SubstringNoWordBoundary(t *testing.T) {
	candidates := []models.Automation{
		linearFlow(`{"type":"linear","keywords":["link"],"responseMessage":"ok"}`),
	}
	// 字面子串匹配，无词边界逻辑
	if _, ok := MatchAutomation("estou sublinking aqui", candidates); !ok {
		t.Error("substring containment should match inside larger words")
	}
}

func TestMatchAutomation_StopsAtFirstKeywordHit(t *testing.T) {
	a := linearFlow(`{"type":"linear","keywords":["preço","link"],"responseMessage":"A"}`)
	b := linearFlow(`{"type":"linear","keywords":["preço"],"responseMessage":"B"}`)

	result, ok := MatchAutomation("qual o preço do link?", []models.Automation{a, b})
	if !ok {
		t.Fatal("expected a match")
	}
	if result.Flow.ResponseMessage != "A" {
		t.Errorf("expected first candidate, got %+v", result.Flow)
	}
}

func TestFlowDefinition_ReplyText(t *testing.T) {
	tests := []struct {
		name string
		flow FlowDefinition
		want string
	}{
		{
			name: "message only",
			flow: FlowDefinition{ResponseMessage: "Aqui está!"},
			want: "Aqui está!",
		},
		{
			name: "message with link appended after blank line",
			flow: FlowDefinition{ResponseMessage: "Aqui está!", ResponseLink: "http://x/y"},
			want: "Aqui está!\n\nhttp://x/y",
		},
		{
			name: "default message when empty",
			flow: FlowDefinition{},
			want: DefaultReplyMessage,
		},
		{
			name: "default message with link",
			flow: FlowDefinition{ResponseLink: "http://x/y"},
			want: DefaultReplyMessage + "\n\nhttp://x/y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flow.ReplyText(); got != tt.want {
				t.Errorf("ReplyText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeFlowDefinition(t *testing.T) {
	if f := DecodeFlowDefinition(`{"type":"linear","keywords":["a","b"],"responseMessage":"m","responseLink":"l"}`); f.Kind != FlowLinear || len(f.Keywords) != 2 {
		t.Errorf("linear decode failed: %+v", f)
	}
	for _, raw := range []string{"", "   ", "{", `{"type":"graph"}`, `{"nodes":[],"edges":[]}`, `[1,2]`} {
		if f := DecodeFlowDefinition(raw); f.Kind != FlowUnrecognized {
			t.Errorf("DecodeFlowDefinition(%q).Kind = %v, want unrecognized", raw, f.Kind)
		}
	}
}
