package constants

import "time"

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	AppPrefix = "app"

	// KeyResumeTextMD5Set 解析文本MD5去重集合 (SET)
	// 格式: app:resume:dedup_set
	KeyResumeTextMD5Set = AppPrefix + ":resume:dedup_set"

	// KeyLastIndexSync 最近一次成功索引同步的时间戳 (STRING, RFC3339)
	// 格式: app:index:last_sync
	KeyLastIndexSync = AppPrefix + ":index:last_sync"

	// KeyTrendsCache 趋势报告缓存 (STRING, JSON)
	// 格式: app:analytics:trends:{windowDays}
	KeyTrendsCache = AppPrefix + ":analytics:trends:%d"
)

const (
	// MD5RecordDefaultExpire 去重记录默认保留时长
	MD5RecordDefaultExpire = 365 * 24 * time.Hour

	// TrendsCacheTTL 趋势报告缓存时长
	TrendsCacheTTL = 5 * time.Minute
)
