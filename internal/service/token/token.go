// Package token 按字符数粗估 token 消耗，只用于触发上下文压缩
package token

import (
	"unicode/utf8"

	"github.com/ashwinyue/next-support/internal/model"
)

// charsPerToken 每个 token 约 4 个字符
const charsPerToken = 4

// Estimate 所有消息正文字符数除以 4 向上取整
func Estimate(messages []*model.Message) int {
	total := 0
	for _, m := range messages {
		total += utf8.RuneCountInString(m.Content)
	}
	return ceilDiv(total)
}

// EstimateText 单段文本的估算
func EstimateText(s string) int {
	return ceilDiv(utf8.RuneCountInString(s))
}

func ceilDiv(chars int) int {
	return (chars + charsPerToken - 1) / charsPerToken
}
