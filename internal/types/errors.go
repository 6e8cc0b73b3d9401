package types

import (
	"errors"
	"fmt"
)

// 错误分类基础类型。上层据此决定HTTP状态码与是否可重试。
var (
	// ErrValidation 输入不合法，立即返回，不重试
	ErrValidation = errors.New("请求校验失败")
	// ErrExternalService 搜索或生成式能力不可达或返回错误
	ErrExternalService = errors.New("外部服务调用失败")
	// ErrSchemaValidation 生成式输出无法解析为JSON或缺少必填字段
	ErrSchemaValidation = errors.New("生成式输出模式校验失败")
	// ErrPartialBatchFailure 批处理部分失败（整体仍为completed）
	ErrPartialBatchFailure = errors.New("批处理部分失败")
)

// DomainError 携带机器可读错误码和细节的业务错误
type DomainError struct {
	BaseErr error
	Code    string
	Message string
	Details string
}

func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (code:%s): %s", e.Message, e.Code, e.Details)
	}
	return fmt.Sprintf("%s (code:%s)", e.Message, e.Code)
}

func (e *DomainError) Unwrap() error {
	return e.BaseErr
}

// Is 支持 errors.Is 按基础错误类型比较
func (e *DomainError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

func NewValidationError(code, message string) error {
	return &DomainError{BaseErr: ErrValidation, Code: code, Message: message}
}

func NewExternalServiceError(capability string, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &DomainError{
		BaseErr: ErrExternalService,
		Code:    "external_service_error",
		Message: fmt.Sprintf("%s 服务不可用", capability),
		Details: detail,
	}
}

func NewSchemaValidationError(detail string) error {
	return &DomainError{
		BaseErr: ErrSchemaValidation,
		Code:    "schema_validation_error",
		Message: "生成式输出不符合要求的模式",
		Details: detail,
	}
}

// ErrorCode 提取错误码；非 DomainError 统一归为 internal_error
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return "internal_error"
}
