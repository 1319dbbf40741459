package middleware

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ashwinyue/next-support/internal/errs"
	"github.com/ashwinyue/next-support/internal/handler"
	"github.com/ashwinyue/next-support/internal/logger"
	"github.com/ashwinyue/next-support/internal/repository"
)

// HeaderUserID 直接指定用户的请求头
const HeaderUserID = "X-User-Id"

// Auth 认证中间件
// 优先使用 Bearer JWT，其次 X-User-Id；用户必须存在
func Auth(users repository.UserRepository, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx, nil)

		userID := ""
		if token, ok := bearerToken(c); ok && jwtSecret != "" {
			id, err := parseToken(token, jwtSecret)
			if err != nil {
				log.Debug("invalid bearer token", "error", err)
				handler.Abort(c, errs.Unauthorized("Invalid or expired token"))
				return
			}
			userID = id
		} else {
			userID = strings.TrimSpace(c.GetHeader(HeaderUserID))
		}

		if userID == "" {
			handler.Abort(c, errs.Unauthorized("X-User-Id header is required"))
			return
		}

		user, err := users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				handler.Abort(c, errs.NotFound("User", userID))
				return
			}
			log.Error("auth lookup failed", "user_id", userID, "error", err)
			handler.Abort(c, errs.Unauthorized("Authentication failed"))
			return
		}

		c.Set("user", user)
		c.Set(handler.ContextKeyUserID, user.ID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}

// parseToken 校验 HS256 令牌，用户 ID 取 user_id，缺省时取 sub
func parseToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid token claims")
	}
	if id, ok := claims["user_id"].(string); ok && id != "" {
		return id, nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", errors.New("invalid user ID in token")
}
