package extractor

import (
	"strings"

	"talent-search-go/internal/constants"
	"talent-search-go/internal/query"
)

// activityVerbs 认定一行描述的是职业经历的动词线索
var activityVerbs = []string{
	"experience", "developed", "managed", "led", "built", "designed",
	"implemented", "maintained", "delivered", "architected",
}

// extractSkillsPattern 按与查询解释器相同的词表从简历文本提取技能，
// 截断到前20个，约束下游索引文档的大小
func extractSkillsPattern(text string) []string {
	return query.ExtractSkillsFromText(text, constants.MaxExtractedSkills)
}

// dedupeAndCap 大小写不敏感去重并截断到技能数量上限
func dedupeAndCap(skills []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
		if len(out) >= constants.MaxExtractedSkills {
			break
		}
	}
	return out
}

// extractExperienceSummary 扫描含职业经历动词的行，拼接前3行作为经验摘要，
// 总长截断到500字符
func extractExperienceSummary(text string) string {
	var picked []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, verb := range activityVerbs {
			if strings.Contains(lower, verb) {
				picked = append(picked, line)
				break
			}
		}
		if len(picked) >= constants.MaxSummaryLines {
			break
		}
	}

	summary := strings.Join(picked, " ")
	runes := []rune(summary)
	if len(runes) > constants.MaxSummaryChars {
		summary = string(runes[:constants.MaxSummaryChars])
	}
	return summary
}
