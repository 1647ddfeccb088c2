package metrics

import "sync/atomic"

// 轻量进程内计数器，经 /metrics-lite 暴露快照。
// 不引入完整指标体系，重启归零。
var (
	webhookDeliveries uint64
	signatureFailures uint64
	keywordMatches    uint64
	repliesSent       uint64
	replyFailures     uint64
	rateLimitDrops    uint64
)

func IncWebhookDelivery() { atomic.AddUint64(&webhookDeliveries, 1) }

func IncSignatureFailure() { atomic.AddUint64(&signatureFailures, 1) }

func IncKeywordMatch() { atomic.AddUint64(&keywordMatches, 1) }

func IncReplySent() { atomic.AddUint64(&repliesSent, 1) }

func IncReplyFailure() { atomic.AddUint64(&replyFailures, 1) }

func IncRateLimitDrop() { atomic.AddUint64(&rateLimitDrops, 1) }

// Snapshot 返回当前计数快照
func Snapshot() map[string]uint64 {
	return map[string]uint64{
		"webhook_deliveries": atomic.LoadUint64(&webhookDeliveries),
		"signature_failures": atomic.LoadUint64(&signatureFailures),
		"keyword_matches":    atomic.LoadUint64(&keywordMatches),
		"replies_sent":       atomic.LoadUint64(&repliesSent),
		"reply_failures":     atomic.LoadUint64(&replyFailures),
		"rate_limit_drops":   atomic.LoadUint64(&rateLimitDrops),
	}
}
