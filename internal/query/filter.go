package query

import (
	"fmt"
	"strings"

	"talent-search-go/internal/types"
)

// FilterExpr 过滤表达式节点。
// 过滤条件通过小型AST组装再渲染，而不是手工拼字符串，
// 值在渲染时统一转义，杜绝拼出畸形表达式。
type FilterExpr interface {
	Render() (string, error)
}

// Eq 字段等值谓词，渲染为 field eq 'value'
type Eq struct {
	Field string
	Value string
}

// Render 实现 FilterExpr
func (e Eq) Render() (string, error) {
	v, err := escapeFilterValue(e.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s eq '%s'", e.Field, v), nil
}

// AnyOf 集合成员谓词，渲染为 field/any(x: x eq 'value')
type AnyOf struct {
	Field string
	Value string
}

// Render 实现 FilterExpr
func (a AnyOf) Render() (string, error) {
	v, err := escapeFilterValue(a.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/any(x: x eq '%s')", a.Field, v), nil
}

// And 逻辑与组合，子节点少于两个时原样透传
type And struct {
	Exprs []FilterExpr
}

// Render 实现 FilterExpr
func (a And) Render() (string, error) {
	return renderJoined(a.Exprs, "and")
}

// Or 逻辑或组合，多个子节点时渲染结果加括号
type Or struct {
	Exprs []FilterExpr
}

// Render 实现 FilterExpr
func (o Or) Render() (string, error) {
	s, err := renderJoined(o.Exprs, "or")
	if err != nil || s == "" {
		return s, err
	}
	if len(o.Exprs) > 1 {
		return "(" + s + ")", nil
	}
	return s, nil
}

func renderJoined(exprs []FilterExpr, op string) (string, error) {
	var parts []string
	for _, e := range exprs {
		s, err := e.Render()
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " "+op+" "), nil
}

// escapeFilterValue 校验并转义进入过滤表达式的值：
// 含有控制字符或括号的值直接拒绝，单引号按语法规则双写转义。
func escapeFilterValue(value string) (string, error) {
	for _, r := range value {
		if r < 0x20 || r == 0x7f || r == '(' || r == ')' {
			return "", types.NewValidationError("invalid_filter_value",
				fmt.Sprintf("过滤条件值含有非法字符: %q", value))
		}
	}
	return strings.ReplaceAll(value, "'", "''"), nil
}
