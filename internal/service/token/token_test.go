package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ashwinyue/next-support/internal/model"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		name     string
		contents []string
		expected int
	}{
		{"empty", nil, 0},
		{"exact multiple", []string{"abcd"}, 1},
		{"rounds up", []string{"abcde"}, 2},
		{"sums across messages", []string{"ab", "cd", "e"}, 2},
		{"counts code points", []string{"你好世界"}, 1},
		{"large", []string{strings.Repeat("x", 32001)}, 8001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			messages := make([]*model.Message, len(tt.contents))
			for i, c := range tt.contents {
				messages[i] = &model.Message{Content: c}
			}
			assert.Equal(t, tt.expected, Estimate(messages))
		})
	}
}

func TestEstimateText(t *testing.T) {
	assert.Equal(t, 0, EstimateText(""))
	assert.Equal(t, 3, EstimateText("hello world"))
}
