package constants

import "time"

const (
	// 简历提取的载荷上限
	MaxExtractedSkills    = 20  // 单份简历最多保留的技能数
	MaxSummaryLines       = 3   // 经验摘要最多拼接的行数
	MaxSummaryChars       = 500 // 经验摘要字符预算
	MinQueryLength        = 3   // 自然语言查询最短长度
	DefaultSearchTop      = 20  // 默认返回结果数
	DefaultTrendTopN      = 5   // 趋势报告中Top技能/地区的数量
	DefaultTrendWindowDay = 30  // 趋势统计默认时间窗口(天)
)

const (
	// 批处理默认参数，可在配置中覆盖
	DefaultBatchConcurrency = 10
	DefaultInterChunkDelay  = 200 * time.Millisecond
)
