package types

import "time"

// SearchMode 搜索模式
type SearchMode string

const (
	ModeGeneral         SearchMode = "general"
	ModeJobMatch        SearchMode = "job-match"
	ModeSemantic        SearchMode = "semantic"
	ModeNaturalLanguage SearchMode = "natural-language"
)

// IntentTag 查询意图的粗分类
type IntentTag string

const (
	IntentCandidateSearch IntentTag = "candidate-search"
	IntentJobMatching     IntentTag = "job-matching"
	IntentRecruitment     IntentTag = "recruitment"
	IntentGeneralSearch   IntentTag = "general-search"
)

// VisaStatus 签证状态枚举
type VisaStatus string

const (
	VisaCitizen           VisaStatus = "citizen"
	VisaPermanentResident VisaStatus = "permanent_resident"
	VisaH1B               VisaStatus = "h1b"
	VisaNeedsSponsorship  VisaStatus = "needs_sponsorship"
	VisaUnknown           VisaStatus = ""
)

// Availability 到岗时间枚举
type Availability string

const (
	AvailabilityImmediate Availability = "immediate"
	AvailabilityTwoWeeks  Availability = "two_weeks"
	AvailabilityOneMonth  Availability = "one_month"
	AvailabilityUnknown   Availability = ""
)

// ParsedIntent 是查询解释器从一条自由文本查询中提取出的结构化结果。
// 仅在单次请求生命周期内存在，不做持久化。
type ParsedIntent struct {
	Skills          []string     `json:"skills"`
	Locations       []string     `json:"locations"`
	ExperienceTerms []string     `json:"experience_terms"`
	Availability    Availability `json:"availability,omitempty"`
	VisaStatus      VisaStatus   `json:"visa_status,omitempty"`
	Intent          IntentTag    `json:"intent"`
}

// SearchQuery 一次搜索请求：原始文本或显式结构化过滤条件二选一。
type SearchQuery struct {
	RawQuery string        `json:"query,omitempty"`
	Filters  *QueryFilters `json:"filters,omitempty"`
	Mode     SearchMode    `json:"mode,omitempty"`
	Top      int           `json:"top,omitempty"`
	Skip     int           `json:"skip,omitempty"`
}

// QueryFilters 显式过滤条件，绕过自然语言解释直接进入查询构建。
type QueryFilters struct {
	Skills       []string     `json:"skills,omitempty"`
	Locations    []string     `json:"locations,omitempty"`
	Availability Availability `json:"availability,omitempty"`
	VisaStatus   VisaStatus   `json:"visa_status,omitempty"`
}

// JobRequirements 岗位匹配模式下的技能要求
type JobRequirements struct {
	Title           string   `json:"title"`
	RequiredSkills  []string `json:"required_skills"`
	PreferredSkills []string `json:"preferred_skills,omitempty"`
	Locations       []string `json:"locations,omitempty"`
}

// MatchResult 单个候选人的打分结果。
// 结果列表恒按 OverallScore 降序排列，同分按 CandidateID 升序保证确定性。
type MatchResult struct {
	CandidateID   string   `json:"candidate_id"`
	Name          string   `json:"name,omitempty"`
	SemanticScore float64  `json:"semantic_score"`
	SkillScore    float64  `json:"skill_score"`
	OverallScore  float64  `json:"overall_score"`
	MatchedSkills []string `json:"matched_skills,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`
}

// ExtractedResume 简历提取器产出的结构化数据
type ExtractedResume struct {
	Skills            []string `json:"skills"`
	ExperienceSummary string   `json:"experience_summary"`

	// 以下字段仅在启用LLM提取时填充
	Name           string             `json:"name,omitempty"`
	Email          string             `json:"email,omitempty"`
	Phone          string             `json:"phone,omitempty"`
	Location       string             `json:"location,omitempty"`
	WorkHistory    []WorkHistoryEntry `json:"work_history,omitempty"`
	Education      []string           `json:"education,omitempty"`
	Certifications []string           `json:"certifications,omitempty"`
}

// WorkHistoryEntry LLM提取的单段工作经历
type WorkHistoryEntry struct {
	Company     string `json:"company"`
	Title       string `json:"title"`
	Period      string `json:"period,omitempty"`
	Description string `json:"description,omitempty"`
}

// BatchItem 批处理流水线的单个输入项
type BatchItem struct {
	CandidateID     string `json:"candidate_id"`
	ResumeObjectKey string `json:"resume_object_key"`
}

// BatchStatus 批处理任务的状态机：Created → Running → Completed
type BatchStatus string

const (
	BatchCreated   BatchStatus = "created"
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
)

// ItemError 批处理中单项失败的记录
type ItemError struct {
	CandidateID string `json:"candidate_id"`
	Reason      string `json:"reason"`
}

// BatchResult 一次批处理的聚合结果。计数只增不减；
// 未成功的项一定出现在 Errors 中，不会被静默丢弃。
type BatchResult struct {
	JobID     string      `json:"job_id"`
	Status    BatchStatus `json:"status"`
	Processed int         `json:"processed"`
	Succeeded int         `json:"succeeded"`
	Batches   int         `json:"batches"`
	Errors    []ItemError `json:"errors"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
}

// AnalyticsEvent 查询事件，追加写入后不再修改。
type AnalyticsEvent struct {
	QueryText   string     `json:"query_text"`
	Mode        SearchMode `json:"mode"`
	Filters     string     `json:"filters,omitempty"` // JSON编码的过滤条件
	ResultCount int        `json:"result_count"`
	ActorID     string     `json:"actor_id,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// TrendReport 分析聚合器在时间窗口内的统计输出
type TrendReport struct {
	WindowDays   int            `json:"window_days"`
	TotalQueries int            `json:"total_queries"`
	TopSkills    []TermCount    `json:"top_skills"`
	TopLocations []TermCount    `json:"top_locations"`
	DailyVolume  map[string]int `json:"daily_volume"` // key: YYYY-MM-DD
	Insights     []string       `json:"insights"`
}

// TermCount 词条及其出现次数
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// SyncStats 文档存储与搜索索引之间的漂移统计
type SyncStats struct {
	IndexedDocuments int64 `json:"indexed_documents"`
	IndexStorageSize int64 `json:"index_storage_size"`
	StoredCandidates int64 `json:"stored_candidates"`
	UnsyncedCount    int64 `json:"unsynced_count"`
	// LastSyncedAt 最近一次成功同步时间，从未同步过时为空
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}
