package query

import (
	"log"
	"os"
	"regexp"
	"strings"
	"unicode"

	"talent-search-go/internal/constants"
	"talent-search-go/internal/types"
)

// 技能类别的遍历顺序固定，保证抽取结果的顺序确定
var skillCategories = []string{"languages", "frameworks", "cloud", "datastores"}

var (
	// 介词线索后跟大写开头短语视为地点，如 "in New York"、"based in Austin"
	locationPattern = regexp.MustCompile(`\b(?:in|from|located(?: in)?|based(?: in)?)\s+([A-Z][A-Za-z.]*(?:\s+[A-Z][A-Za-z.]*)*)`)
	// "5 years"、"10+ yrs" 形式的经验年限
	yearsPattern = regexp.MustCompile(`(?i)\b(\d+)\s*\+?\s*(?:years?|yrs?)\b`)
	// 别名分词用，保留 #、+、. 以免拆坏 C#、C++、Node.js
	tokenPattern = regexp.MustCompile(`[A-Za-z0-9#+.\-]+`)
)

// Interpreter 查询解释器：把一条自由文本查询解析为结构化的 ParsedIntent。
// 纯计算组件，无网络调用，无共享可变状态，可并发使用。
type Interpreter struct {
	logger *log.Logger
}

// InterpreterOption Interpreter 的配置选项
type InterpreterOption func(*Interpreter)

// WithInterpreterLogger 设置自定义日志记录器
func WithInterpreterLogger(logger *log.Logger) InterpreterOption {
	return func(i *Interpreter) {
		i.logger = logger
	}
}

// NewInterpreter 创建一个新的查询解释器
func NewInterpreter(options ...InterpreterOption) *Interpreter {
	i := &Interpreter{
		logger: log.New(os.Stdout, "[Interpreter] ", log.LstdFlags),
	}
	for _, option := range options {
		option(i)
	}
	return i
}

// Interpret 解析自由文本查询。
// 文本过短返回 ValidationError；除此之外不报错，实体提取不到时返回空列表。
func (i *Interpreter) Interpret(text string) (*types.ParsedIntent, error) {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < constants.MinQueryLength {
		return nil, types.NewValidationError("query_too_short", "查询文本过短，至少需要3个字符")
	}

	intent := &types.ParsedIntent{
		Skills:          i.extractSkills(trimmed),
		Locations:       i.extractLocations(trimmed),
		ExperienceTerms: i.extractExperienceTerms(trimmed),
		Availability:    i.extractAvailability(trimmed),
		VisaStatus:      i.extractVisaStatus(trimmed),
		Intent:          i.classifyIntent(trimmed),
	}

	i.logger.Printf("查询解析完成: skills=%d locations=%d intent=%s",
		len(intent.Skills), len(intent.Locations), intent.Intent)
	return intent, nil
}

// ExtractSkillsFromText 按词表从任意文本中提取技能，是简历提取器复用的入口。
// maxSkills <= 0 表示不限制数量。
func ExtractSkillsFromText(text string, maxSkills int) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var skills []string

	add := func(canonical string) {
		key := strings.ToLower(canonical)
		if seen[key] {
			return
		}
		seen[key] = true
		skills = append(skills, canonical)
	}

	for _, category := range skillCategories {
		for _, term := range skillVocabulary[category] {
			if maxSkills > 0 && len(skills) >= maxSkills {
				return skills
			}
			if containsWholeWord(lower, strings.ToLower(term)) {
				add(term)
			}
		}
	}

	// 别名按 token 精确匹配，避免子串误命中
	for _, token := range tokenPattern.FindAllString(lower, -1) {
		if maxSkills > 0 && len(skills) >= maxSkills {
			break
		}
		if canonical, ok := skillAliases[token]; ok {
			add(canonical)
		}
	}

	return skills
}

func (i *Interpreter) extractSkills(text string) []string {
	return ExtractSkillsFromText(text, 0)
}

func (i *Interpreter) extractLocations(text string) []string {
	seen := make(map[string]bool)
	var locations []string

	for _, m := range locationPattern.FindAllStringSubmatch(text, -1) {
		loc := strings.TrimRight(m[1], ",.;:!?")
		loc = strings.TrimSpace(loc)
		if loc == "" {
			continue
		}
		// "experience in Java" 一类短语命中的是技能词，不算地点
		if isKnownSkill(loc) {
			continue
		}
		key := strings.ToLower(loc)
		if seen[key] {
			continue
		}
		seen[key] = true
		locations = append(locations, loc)
	}

	return locations
}

func (i *Interpreter) extractExperienceTerms(text string) []string {
	lower := strings.ToLower(text)
	var terms []string

	for _, term := range seniorityTerms {
		if containsWholeWord(lower, term) {
			terms = append(terms, term)
		}
	}

	for _, m := range yearsPattern.FindAllString(text, -1) {
		terms = append(terms, strings.TrimSpace(m))
	}

	return terms
}

func (i *Interpreter) extractAvailability(text string) types.Availability {
	lower := strings.ToLower(text)
	for _, kw := range availabilityKeywords {
		if strings.Contains(lower, kw.phrase) {
			return kw.value
		}
	}
	return types.AvailabilityUnknown
}

func (i *Interpreter) extractVisaStatus(text string) types.VisaStatus {
	lower := strings.ToLower(text)
	for _, kw := range visaKeywords {
		if strings.Contains(lower, kw.phrase) {
			return kw.value
		}
	}
	return types.VisaUnknown
}

// classifyIntent 按关键词优先级分类：招聘语境 > 岗位匹配语境 > 候选人查找语境 > 通用
func (i *Interpreter) classifyIntent(text string) types.IntentTag {
	lower := strings.ToLower(text)

	for _, kw := range recruitmentKeywords {
		if strings.Contains(lower, kw) {
			return types.IntentRecruitment
		}
	}
	for _, kw := range jobMatchingKeywords {
		if strings.Contains(lower, kw) {
			return types.IntentJobMatching
		}
	}
	for _, kw := range candidateSearchKeywords {
		if strings.Contains(lower, kw) {
			return types.IntentCandidateSearch
		}
	}
	return types.IntentGeneralSearch
}

// CanonicalSkill 把技能别名归一为词表中的规范名，未知技能原样返回
func CanonicalSkill(s string) string {
	trimmed := strings.TrimSpace(s)
	if canonical, ok := skillAliases[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}

// isKnownSkill 判断短语是否为词表或别名中的技能
func isKnownSkill(phrase string) bool {
	lower := strings.ToLower(phrase)
	if _, ok := skillAliases[lower]; ok {
		return true
	}
	for _, category := range skillCategories {
		for _, term := range skillVocabulary[category] {
			if strings.EqualFold(term, phrase) {
				return true
			}
		}
	}
	return false
}

// containsWholeWord 整词匹配：命中位置前后都不能是字母或数字。
// 词表中含 C++、C# 这类带符号的词，不能直接用 \b 边界。
func containsWholeWord(text, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; ; {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)

		beforeOK := idx == 0 || !isWordChar(rune(text[idx-1]))
		afterOK := end == len(text) || !isWordChar(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
