package query

import "talent-search-go/internal/types"

// skillVocabulary 技能词表，按类别分组。
// 解释器与简历提取器共用同一份词表，保证抽取口径一致。
var skillVocabulary = map[string][]string{
	"languages": {
		"Java", "Python", "JavaScript", "TypeScript", "Go", "C++", "C#",
		"Ruby", "PHP", "Swift", "Kotlin", "Rust", "Scala", "R", "SQL",
	},
	"frameworks": {
		"React", "Angular", "Vue", "Node.js", "Spring", "Spring Boot", "Django",
		"Flask", "FastAPI", "Express", "Rails", ".NET", "Gin", "Hertz", "gRPC",
	},
	"cloud": {
		"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Terraform", "Jenkins",
		"Ansible", "Linux", "Git", "CI/CD", "Prometheus", "Grafana",
	},
	"datastores": {
		"MySQL", "PostgreSQL", "MongoDB", "Redis", "Elasticsearch", "Cassandra",
		"Kafka", "RabbitMQ", "DynamoDB", "SQLite", "Oracle", "SQL Server",
	},
}

// skillAliases 别名映射：小写别名 -> 规范名。
// 采用显式同义词表而非双向子串匹配，避免 "Java" 误命中 "JavaScript"。
var skillAliases = map[string]string{
	"js":         "JavaScript",
	"ecmascript": "JavaScript",
	"ts":         "TypeScript",
	"golang":     "Go",
	"k8s":        "Kubernetes",
	"postgres":   "PostgreSQL",
	"mongo":      "MongoDB",
	"es":         "Elasticsearch",
	"nodejs":     "Node.js",
	"node":       "Node.js",
	"springboot": "Spring Boot",
	"dotnet":     ".NET",
	"reactjs":    "React",
	"vuejs":      "Vue",
}

// seniorityTerms 资历形容词
var seniorityTerms = []string{
	"junior", "senior", "lead", "principal", "staff", "entry level", "mid-level",
}

// availabilityKeyword 到岗时间关键词与对应枚举值。
// 按声明顺序匹配，长短语放在短语前面，文本中出现多个短语时取最先声明者。
type availabilityKeyword struct {
	phrase string
	value  types.Availability
}

var availabilityKeywords = []availabilityKeyword{
	{"available now", types.AvailabilityImmediate},
	{"right away", types.AvailabilityImmediate},
	{"immediately", types.AvailabilityImmediate},
	{"immediate", types.AvailabilityImmediate},
	{"two weeks", types.AvailabilityTwoWeeks},
	{"2 weeks", types.AvailabilityTwoWeeks},
	{"one month notice", types.AvailabilityOneMonth},
	{"one month", types.AvailabilityOneMonth},
	{"1 month", types.AvailabilityOneMonth},
	{"30 days", types.AvailabilityOneMonth},
}

// visaKeyword 签证状态关键词与对应枚举值，匹配规则同上
type visaKeyword struct {
	phrase string
	value  types.VisaStatus
}

var visaKeywords = []visaKeyword{
	{"citizenship", types.VisaCitizen},
	{"citizen", types.VisaCitizen},
	{"green card", types.VisaPermanentResident},
	{"permanent resident", types.VisaPermanentResident},
	{"h-1b", types.VisaH1B},
	{"h1b", types.VisaH1B},
	{"visa sponsorship", types.VisaNeedsSponsorship},
	{"sponsorship", types.VisaNeedsSponsorship},
	{"sponsor", types.VisaNeedsSponsorship},
}

// 意图分类关键词，按优先级从高到低匹配
var (
	recruitmentKeywords     = []string{"hire", "hiring", "recruit", "recruiting", "recruitment", "headhunt", "onboard"}
	jobMatchingKeywords     = []string{"match", "matching", "suitable", "fit for", "qualified for", "best candidates for"}
	candidateSearchKeywords = []string{"find", "search", "look for", "looking for", "show me", "list", "who knows"}
)
