package handler

import (
	"errors"

	"talent-search-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// writeError 将业务错误映射为统一的HTTP错误响应。
// 校验错误返回400，外部服务不可用返回502，模式校验失败返回422，其余一律500。
func writeError(c *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrValidation):
		status = consts.StatusBadRequest
	case errors.Is(err, types.ErrSchemaValidation):
		status = consts.StatusUnprocessableEntity
	case errors.Is(err, types.ErrExternalService):
		status = consts.StatusBadGateway
	}

	payload := map[string]interface{}{
		"code":    types.ErrorCode(err),
		"message": err.Error(),
	}
	var de *types.DomainError
	if errors.As(err, &de) && de.Details != "" {
		payload["details"] = de.Details
	}

	c.JSON(status, map[string]interface{}{"error": payload})
}
