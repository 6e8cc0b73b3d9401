package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// TextExtractor 把简历原始字节按声明格式转成纯文本。
// txt 直接透传，其余格式需要外部提取能力。
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, format string) (string, error)
}

// formatContentTypes 简历格式到Tika内容类型的映射
var formatContentTypes = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"txt":  "text/plain",
}

// TikaExtractor 基于Apache Tika服务器的文本提取器，支持 pdf/doc/docx/txt
type TikaExtractor struct {
	serverURL string
	client    *http.Client
	logger    *log.Logger
}

// TikaOption 定义配置选项函数
type TikaOption func(*TikaExtractor)

// WithTikaTimeout 配置HTTP客户端超时时间
func WithTikaTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		e.client.Timeout = timeout
	}
}

// WithTikaHTTPClient 替换底层HTTP客户端，测试时注入 httptest 服务端用
func WithTikaHTTPClient(client *http.Client) TikaOption {
	return func(e *TikaExtractor) {
		e.client = client
	}
}

// WithTikaLogger 配置自定义日志记录器
func WithTikaLogger(logger *log.Logger) TikaOption {
	return func(e *TikaExtractor) {
		e.logger = logger
	}
}

// 确保TikaExtractor实现了TextExtractor接口
var _ TextExtractor = (*TikaExtractor)(nil)

// NewTikaExtractor 创建一个新的Tika文本提取器
func NewTikaExtractor(serverURL string, options ...TikaOption) *TikaExtractor {
	e := &TikaExtractor{
		serverURL: serverURL,
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    log.New(os.Stderr, "[Tika] ", log.LstdFlags),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// ExtractText 把文档字节发给Tika服务器换回纯文本
func (e *TikaExtractor) ExtractText(ctx context.Context, data []byte, format string) (string, error) {
	startTime := time.Now()

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "txt" {
		return string(data), nil
	}

	contentType, ok := formatContentTypes[format]
	if !ok {
		return "", fmt.Errorf("不支持的简历格式: %s", format)
	}

	url := fmt.Sprintf("%s/tika", e.serverURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "text/plain")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("发送请求到Tika服务器失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tika服务器返回错误状态码: %d", resp.StatusCode)
	}

	textBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Tika响应失败: %w", err)
	}

	e.logger.Printf("文本提取完成: 格式=%s 字符数=%d (用时 %.2f秒)",
		format, len(textBytes), time.Since(startTime).Seconds())
	return string(textBytes), nil
}
