package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-support/internal/errs"
	"github.com/ashwinyue/next-support/internal/logger"
	"github.com/ashwinyue/next-support/internal/service/chat"
)

// 未分类错误对外只返回通用信息
const internalErrorMessage = "An unexpected error occurred. Please try again later."

// SuccessResponse 成功响应
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// PageResponse 分页响应
type PageResponse struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody 错误详情
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success 200
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: data})
}

// Created 201
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Data: data})
}

// NoContent 204
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Paginated 分页成功响应
func Paginated[T any](c *gin.Context, p *chat.Page[T]) {
	c.JSON(http.StatusOK, PageResponse{
		Success: true,
		Data:    p.Items,
		Pagination: Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      p.Total,
			TotalPages: p.TotalPages,
		},
	})
}

// Error 根据错误类型返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}
	log := logger.FromContext(c.Request.Context(), nil)

	if e, ok := errs.As(err); ok {
		log.Warn("application error",
			"code", e.Code, "status", e.Status, "message", e.Message,
			"method", c.Request.Method, "path", c.Request.URL.Path)
		c.JSON(e.Status, ErrorResponse{Error: ErrorBody{Code: e.Code, Message: e.Message}})
		return
	}

	log.Error("unexpected error", "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
		Code:    errs.CodeInternal,
		Message: internalErrorMessage,
	}})
}

// Abort 写错误响应并中止后续处理
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}

// queryInt 读取整数查询参数，缺省返回 0
func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.Validation("Invalid " + key + ": must be a number")
	}
	return n, nil
}

// pagination 读取 page 和 limit，limit 缺省为 defaultLimit
func pagination(c *gin.Context, defaultLimit int) (int, int, error) {
	page, err := queryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	if c.Query("limit") == "" {
		limit = defaultLimit
	}
	return page, limit, nil
}
