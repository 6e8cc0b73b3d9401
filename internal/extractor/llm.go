package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"talent-search-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// llmSystemPrompt 结构化提取的系统提示词
const llmSystemPrompt = `你是一个简历信息提取助手。从给定的简历文本中提取结构化信息，严格按以下JSON格式输出，不要输出任何其他内容：
{
  "name": "候选人姓名",
  "email": "邮箱",
  "phone": "电话",
  "location": "所在地",
  "skills": ["技能1", "技能2"],
  "experience_summary": "一段经验概述",
  "work_history": [{"company": "公司", "title": "职位", "period": "起止时间", "description": "职责描述"}],
  "education": ["学历条目"],
  "certifications": ["证书条目"]
}
必填字段: name, skills, experience_summary。信息缺失的可选字段输出空值。`

// llmResume LLM输出的原始结构，校验通过后才转换为领域类型
type llmResume struct {
	Name              string                   `json:"name"`
	Email             string                   `json:"email"`
	Phone             string                   `json:"phone"`
	Location          string                   `json:"location"`
	Skills            []string                 `json:"skills"`
	ExperienceSummary string                   `json:"experience_summary"`
	WorkHistory       []types.WorkHistoryEntry `json:"work_history"`
	Education         []string                 `json:"education"`
	Certifications    []string                 `json:"certifications"`
}

// LLMExtractor 调用生成式模型做高保真结构化提取。
// 模型输出视为不可信文本：先防御式提取JSON，再做必填字段校验，
// 任何必填字段缺失都是该条目的硬失败，不做猜测或默认值填充。
type LLMExtractor struct {
	chatModel model.ToolCallingChatModel
	logger    *log.Logger
}

// LLMExtractorOption LLMExtractor 的配置选项
type LLMExtractorOption func(*LLMExtractor)

// WithLLMLogger 设置自定义日志记录器
func WithLLMLogger(logger *log.Logger) LLMExtractorOption {
	return func(e *LLMExtractor) {
		e.logger = logger
	}
}

// NewLLMExtractor 创建LLM结构化提取器
func NewLLMExtractor(chatModel model.ToolCallingChatModel, options ...LLMExtractorOption) (*LLMExtractor, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chatModel 不能为空")
	}
	e := &LLMExtractor{
		chatModel: chatModel,
		logger:    log.New(os.Stdout, "[LLMExtractor] ", log.LstdFlags),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExtractStructured 对简历文本执行一次生成式结构化提取。
// 模型不可达返回 ExternalServiceError；输出解析或校验失败返回 SchemaValidationError。
func (e *LLMExtractor) ExtractStructured(ctx context.Context, resumeText string) (*types.ExtractedResume, error) {
	messages := []*schema.Message{
		schema.SystemMessage(llmSystemPrompt),
		schema.UserMessage(resumeText),
	}

	response, err := e.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, types.NewExternalServiceError("llm", err)
	}

	parsed, err := parseAndValidate(response.Content)
	if err != nil {
		e.logger.Printf("LLM输出校验失败: %v", err)
		return nil, err
	}

	return &types.ExtractedResume{
		Skills:            parsed.Skills,
		ExperienceSummary: parsed.ExperienceSummary,
		Name:              parsed.Name,
		Email:             parsed.Email,
		Phone:             parsed.Phone,
		Location:          parsed.Location,
		WorkHistory:       parsed.WorkHistory,
		Education:         parsed.Education,
		Certifications:    parsed.Certifications,
	}, nil
}

// parseAndValidate 防御式解析模型输出并校验必填字段
func parseAndValidate(content string) (*llmResume, error) {
	jsonStr := extractJSON(content)
	if jsonStr == "" {
		return nil, types.NewSchemaValidationError("模型输出中找不到JSON对象")
	}

	var parsed llmResume
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, types.NewSchemaValidationError(fmt.Sprintf("JSON解析失败: %v", err))
	}

	var missing []string
	if strings.TrimSpace(parsed.Name) == "" {
		missing = append(missing, "name")
	}
	if len(parsed.Skills) == 0 {
		missing = append(missing, "skills")
	}
	if strings.TrimSpace(parsed.ExperienceSummary) == "" {
		missing = append(missing, "experience_summary")
	}
	if len(missing) > 0 {
		return nil, types.NewSchemaValidationError(
			fmt.Sprintf("缺少必填字段: %s", strings.Join(missing, ", ")))
	}

	return &parsed, nil
}

var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")

// extractJSON 从模型输出的文本中提取JSON：
// 优先取 ```json ... ``` 代码块，没有则做大括号配对扫描回退
func extractJSON(text string) string {
	matches := jsonFencePattern.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return strings.TrimSpace(text[start : i+1])
			}
		}
	}
	return ""
}
