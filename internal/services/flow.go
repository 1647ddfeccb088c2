package services

import (
	"encoding/json"
	"strings"

	"exclusivelink/internal/models"
)

// DefaultReplyMessage 未配置回复文案时的兜底消息
const DefaultReplyMessage = "Aqui está o link solicitado!"

// FlowKind 流程定义的变体标签
type FlowKind string

const (
	FlowLinear       FlowKind = "linear"
	FlowUnrecognized FlowKind = "unrecognized"
)

// FlowDefinition 自动化流程定义。历史数据里存在图形编辑器产生的
// {nodes, edges} 结构，统一解码为 Unrecognized，永不参与匹配。
type FlowDefinition struct {
	Kind            FlowKind
	Keywords        []string
	ResponseMessage string
	ResponseLink    string
}

// DecodeFlowDefinition 将存储的 JSON 解码为带标签的变体。
// 任何无法识别的形状都归入 Unrecognized，从不返回错误。
func DecodeFlowDefinition(raw string) FlowDefinition {
	if strings.TrimSpace(raw) == "" {
		return FlowDefinition{Kind: FlowUnrecognized}
	}

	var payload struct {
		Type            string          `json:"type"`
		Keywords        json.RawMessage `json:"keywords"`
		ResponseMessage string          `json:"responseMessage"`
		ResponseLink    string          `json:"responseLink"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return FlowDefinition{Kind: FlowUnrecognized}
	}
	if payload.Type != "linear" {
		return FlowDefinition{Kind: FlowUnrecognized}
	}

	var keywords []string
	if len(payload.Keywords) > 0 {
		if err := json.Unmarshal(payload.Keywords, &keywords); err != nil {
			return FlowDefinition{Kind: FlowUnrecognized}
		}
	}

	return FlowDefinition{
		Kind:            FlowLinear,
		Keywords:        keywords,
		ResponseMessage: payload.ResponseMessage,
		ResponseLink:    payload.ResponseLink,
	}
}

// ReplyText 组装回复文案：主文案缺省用兜底消息，
// 配置了链接时以空行分隔追加到文本末尾。
func (f FlowDefinition) ReplyText() string {
	text := f.ResponseMessage
	if text == "" {
		text = DefaultReplyMessage
	}
	if f.ResponseLink != "" {
		text += "\n\n" + f.ResponseLink
	}
	return text
}

// MatchResult 命中的自动化及其解码后的流程
type MatchResult struct {
	Automation models.Automation
	Flow       FlowDefinition
}

// MatchAutomation 在给定顺序的候选集中选出首个命中的自动化。
// 调用方负责预筛（isActive 且 DM_KEYWORD）并决定候选顺序，
// 顺序是对外契约的一部分，先到先得，命中即停。
// 关键词做小写与去空白规范化后按子串匹配；空关键词永不命中。
func MatchAutomation(messageText string, candidates []models.Automation) (MatchResult, bool) {
	if messageText == "" {
		return MatchResult{}, false
	}
	normalized := strings.ToLower(messageText)

	for _, automation := range candidates {
		flow := DecodeFlowDefinition(automation.FlowData)
		if flow.Kind != FlowLinear {
			continue
		}
		for _, keyword := range flow.Keywords {
			keyword = strings.TrimSpace(strings.ToLower(keyword))
			if keyword == "" {
				continue
			}
			if strings.Contains(normalized, keyword) {
				return MatchResult{Automation: automation, Flow: flow}, true
			}
		}
	}
	return MatchResult{}, false
}
