package extractor

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"talent-search-go/internal/tracing"
	"talent-search-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var extractorTracer = otel.Tracer("talent-search-go/extractor")

// ResumeExtractor 简历提取器：原始字节 → 纯文本 → 结构化候选人数据。
// 默认走词表模式提取；注入LLM提取器后改走生成式提取，
// 此时LLM输出校验失败是该条目的硬失败。
type ResumeExtractor struct {
	textExtractor TextExtractor
	llm           *LLMExtractor
	logger        *log.Logger
}

// ResumeExtractorOption ResumeExtractor 的配置选项
type ResumeExtractorOption func(*ResumeExtractor)

// WithLLMExtractor 启用生成式结构化提取
func WithLLMExtractor(llm *LLMExtractor) ResumeExtractorOption {
	return func(e *ResumeExtractor) {
		e.llm = llm
	}
}

// WithExtractorLogger 设置自定义日志记录器
func WithExtractorLogger(logger *log.Logger) ResumeExtractorOption {
	return func(e *ResumeExtractor) {
		e.logger = logger
	}
}

// NewResumeExtractor 创建简历提取器
func NewResumeExtractor(textExtractor TextExtractor, options ...ResumeExtractorOption) (*ResumeExtractor, error) {
	if textExtractor == nil {
		return nil, fmt.Errorf("textExtractor 不能为空")
	}
	e := &ResumeExtractor{
		textExtractor: textExtractor,
		logger:        log.New(os.Stdout, "[ResumeExtractor] ", log.LstdFlags),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// Extract 对单份简历执行提取。
// format 取值 pdf/doc/docx/txt；txt 直接使用原文，其余先过文本提取。
func (e *ResumeExtractor) Extract(ctx context.Context, data []byte, format string) (*types.ExtractedResume, error) {
	ctx, span := extractorTracer.Start(ctx, "ResumeExtractor.Extract")
	defer span.End()
	span.SetAttributes(
		attribute.String("resume.format", format),
		attribute.Int("resume.size_bytes", len(data)),
	)

	if len(data) == 0 {
		return nil, types.NewValidationError("empty_resume", "简历内容为空")
	}

	var text string
	if strings.EqualFold(strings.TrimSpace(format), "txt") {
		text = string(data)
	} else {
		var err error
		text, err = e.textExtractor.ExtractText(ctx, data, format)
		if err != nil {
			wrapped := types.NewExternalServiceError("text-extraction", err)
			tracing.RecordErrorWithInfo(span, wrapped, tracing.ErrorTypeExternal,
				attribute.String("extract.stage", "text"))
			return nil, wrapped
		}
	}

	if strings.TrimSpace(text) == "" {
		return nil, types.NewValidationError("empty_resume_text", "简历提取不到任何文本")
	}
	// 追踪属性只带截断后的文本片段，不落全文
	span.SetAttributes(attribute.String("resume.text_preview", tracing.SafeResumeContent(text)))

	// LLM提取可用时优先，校验失败即判该条目失败，不回退词表模式
	if e.llm != nil {
		result, err := e.llm.ExtractStructured(ctx, text)
		if err != nil {
			tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeLLM,
				attribute.String("extract.stage", "llm"))
			return nil, err
		}
		// 生成式输出的技能数量同样要守住上限
		result.Skills = dedupeAndCap(result.Skills)
		e.logger.Printf("LLM提取完成: skills=%d", len(result.Skills))
		return result, nil
	}

	result := &types.ExtractedResume{
		Skills:            extractSkillsPattern(text),
		ExperienceSummary: extractExperienceSummary(text),
	}
	e.logger.Printf("词表提取完成: skills=%d summary_len=%d",
		len(result.Skills), len(result.ExperienceSummary))
	return result, nil
}

// ExtractFromText 跳过文本提取步骤，直接对纯文本做词表提取
func (e *ResumeExtractor) ExtractFromText(ctx context.Context, text string) (*types.ExtractedResume, error) {
	return e.Extract(ctx, []byte(text), "txt")
}
