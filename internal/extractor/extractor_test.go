package extractor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"talent-search-go/internal/constants"
	"talent-search-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `John Smith
Software Engineer

5 years of experience building backend services.
Developed microservices in Go and Python with PostgreSQL and Redis.
Managed a team of 4 engineers.
Led migration to Kubernetes on AWS.

Education: BS Computer Science`

// mockChatModel 模拟生成式模型
type mockChatModel struct {
	content string
	err     error
}

func (m *mockChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.RoleType("assistant"), Content: m.content}, nil
}

func (m *mockChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *mockChatModel) BindTools(tools []*schema.ToolInfo) error { return nil }

func (m *mockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// TestExtractPatternMode 词表模式：txt 直接用原文，技能与经验摘要按模式提取
func TestExtractPatternMode(t *testing.T) {
	ext, err := NewResumeExtractor(NewTikaExtractor("http://unused"))
	require.NoError(t, err)

	result, err := ext.Extract(context.Background(), []byte(sampleResume), "txt")
	require.NoError(t, err)

	assert.Contains(t, result.Skills, "Go")
	assert.Contains(t, result.Skills, "Python")
	assert.Contains(t, result.Skills, "PostgreSQL")
	assert.Contains(t, result.Skills, "Kubernetes")
	assert.NotContains(t, result.Skills, "Java")

	// 经验摘要由含职业动词的行拼成，最多3行
	assert.Contains(t, result.ExperienceSummary, "5 years of experience")
	assert.Contains(t, result.ExperienceSummary, "Developed microservices")
	assert.Contains(t, result.ExperienceSummary, "Managed a team")
	assert.NotContains(t, result.ExperienceSummary, "Led migration")
	assert.LessOrEqual(t, len([]rune(result.ExperienceSummary)), constants.MaxSummaryChars)
}

// TestExtractSkillCap 技能数量封顶在20个
func TestExtractSkillCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Skills: Java Python JavaScript TypeScript Go C++ C# Ruby PHP Swift ")
	sb.WriteString("Kotlin Rust Scala SQL React Angular Vue Spring Django Flask ")
	sb.WriteString("AWS Azure GCP Docker Kubernetes MySQL Redis MongoDB Kafka")

	skills := extractSkillsPattern(sb.String())
	assert.Len(t, skills, constants.MaxExtractedSkills)
}

// TestExtractEmptyInput 空输入与空文本都是校验错误
func TestExtractEmptyInput(t *testing.T) {
	ext, err := NewResumeExtractor(NewTikaExtractor("http://unused"))
	require.NoError(t, err)

	_, err = ext.Extract(context.Background(), nil, "txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, err = ext.Extract(context.Background(), []byte("   \n  "), "txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

// TestExtractViaTika 非txt格式先过Tika取文本
func TestExtractViaTika(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tika", r.URL.Path)
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		fmt.Fprint(w, sampleResume)
	}))
	defer server.Close()

	ext, err := NewResumeExtractor(NewTikaExtractor(server.URL))
	require.NoError(t, err)

	result, err := ext.Extract(context.Background(), []byte("%PDF-1.4 fake"), "pdf")
	require.NoError(t, err)
	assert.Contains(t, result.Skills, "Go")
}

// TestExtractTikaUnavailable Tika不可达返回 ExternalServiceError
func TestExtractTikaUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	ext, err := NewResumeExtractor(NewTikaExtractor(server.URL))
	require.NoError(t, err)

	_, err = ext.Extract(context.Background(), []byte("%PDF"), "pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrExternalService))
}

// TestExtractLLMMode LLM模式下输出通过校验后直接使用
func TestExtractLLMMode(t *testing.T) {
	llmOutput := "```json\n" + `{
		"name": "John Smith",
		"email": "john@example.com",
		"skills": ["Go", "Kubernetes"],
		"experience_summary": "Backend engineer with 5 years of experience.",
		"work_history": [{"company": "Acme", "title": "Engineer"}]
	}` + "\n```"

	llm, err := NewLLMExtractor(&mockChatModel{content: llmOutput})
	require.NoError(t, err)

	ext, err := NewResumeExtractor(NewTikaExtractor("http://unused"), WithLLMExtractor(llm))
	require.NoError(t, err)

	result, err := ext.Extract(context.Background(), []byte(sampleResume), "txt")
	require.NoError(t, err)

	assert.Equal(t, "John Smith", result.Name)
	assert.Equal(t, []string{"Go", "Kubernetes"}, result.Skills)
	require.Len(t, result.WorkHistory, 1)
	assert.Equal(t, "Acme", result.WorkHistory[0].Company)
}

// TestExtractLLMMissingRequiredField 必填字段缺失是硬失败，不回退词表模式
func TestExtractLLMMissingRequiredField(t *testing.T) {
	llm, err := NewLLMExtractor(&mockChatModel{
		content: `{"name": "John", "skills": []}`,
	})
	require.NoError(t, err)

	ext, err := NewResumeExtractor(NewTikaExtractor("http://unused"), WithLLMExtractor(llm))
	require.NoError(t, err)

	_, err = ext.Extract(context.Background(), []byte(sampleResume), "txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSchemaValidation))
}

// TestExtractLLMMalformedOutput 非JSON输出同样是 SchemaValidationError
func TestExtractLLMMalformedOutput(t *testing.T) {
	llm, err := NewLLMExtractor(&mockChatModel{content: "抱歉，我无法处理这份简历。"})
	require.NoError(t, err)

	_, err = llm.ExtractStructured(context.Background(), sampleResume)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrSchemaValidation))
}

// TestExtractJSONFallback 无代码块时用大括号配对扫描回退
func TestExtractJSONFallback(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, extractJSON(`前缀 {"a": {"b": 1}} 后缀`))
	assert.Equal(t, `{"key": "value"}`, extractJSON("```json\n{\"key\": \"value\"}\n```"))
	assert.Equal(t, "", extractJSON("没有任何JSON"))
}
