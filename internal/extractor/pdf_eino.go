package extractor

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// EinoPDFExtractor 使用 Eino PDF Parser 的进程内提取器，
// 不依赖外部Tika服务，但只支持 pdf 和 txt 两种格式。
type EinoPDFExtractor struct {
	parser *pdf.PDFParser
	logger *log.Logger
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFExtractor)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFExtractor) {
		e.logger = logger
	}
}

var _ TextExtractor = (*EinoPDFExtractor)(nil)

// NewEinoPDFExtractor 初始化 Eino PDF 文本提取器。
// 不按页面分割，整个文档作为单个字符串返回。
func NewEinoPDFExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Eino PDF parser 失败: %w", err)
	}

	e := &EinoPDFExtractor{
		parser: p,
		logger: log.New(os.Stderr, "[PDF解析器] ", log.LstdFlags),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExtractText 实现 TextExtractor 接口
func (e *EinoPDFExtractor) ExtractText(ctx context.Context, data []byte, format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "txt":
		return string(data), nil
	case "pdf":
	default:
		return "", fmt.Errorf("eino提取器不支持格式: %s", format)
	}

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI("resume.pdf"),
	)
	if err != nil {
		return "", fmt.Errorf("eino PDF 解析失败: %w", err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF 解析无结果")
	}

	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(doc.Content)
	}

	e.logger.Printf("PDF提取完成: 提取了 %d 个字符", sb.Len())
	return sb.String(), nil
}
