package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Params 校验并转换后的工具参数
type Params map[string]any

// String 字符串参数，缺失时为空
func (p Params) String(name string) string {
	s, _ := p[name].(string)
	return s
}

// Number 数值参数
func (p Params) Number(name string) (float64, bool) {
	f, ok := p[name].(float64)
	return f, ok
}

// Int 整数参数，缺失或非正数时返回默认值
func (p Params) Int(name string, def int) int {
	f, ok := p.Number(name)
	if !ok || f <= 0 {
		return def
	}
	return int(math.Floor(f))
}

// Bool 布尔参数
func (p Params) Bool(name string) bool {
	b, _ := p[name].(bool)
	return b
}

// parseArguments 修复、解析并按声明转换参数
func parseArguments(t *Tool, raw string) (Params, error) {
	args := map[string]any{}
	if s := strings.TrimSpace(raw); s != "" {
		if err := json.Unmarshal([]byte(RepairJSON(s)), &args); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, t.Name, err)
		}
	}

	params := make(Params, len(t.Params))
	for _, p := range t.Params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if !p.IsOptional() {
				return nil, fmt.Errorf("%w: %s: missing required parameter %q", ErrInvalidArguments, t.Name, p.Name)
			}
			continue
		}
		cv, err := coerce(p, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, t.Name, err)
		}
		params[p.Name] = cv
	}
	return params, nil
}

// coerce 把模型给出的值转换为声明类型，容忍字符串形式的数字和布尔值
func coerce(p Param, v any) (any, error) {
	switch p.Kind {
	case KindString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
	case KindNumber:
		switch x := v.(type) {
		case float64:
			return x, nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f, nil
			}
		}
	case KindBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, nil
			}
		}
	case KindArray:
		if x, ok := v.([]any); ok {
			return x, nil
		}
	}
	return nil, fmt.Errorf("parameter %q: expected %s, got %T", p.Name, p.Kind, v)
}

// RepairJSON 修复模型生成的 JSON 对象
// 先走快速路径，再剥离常见伪影，最后交给 jsonrepair
func RepairJSON(input string) string {
	s := strings.TrimSpace(input)

	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && json.Valid([]byte(s)) {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	// 截取对象区域，丢掉前后的说明文字
	i := strings.IndexByte(s, '{')
	j := strings.LastIndexByte(s, '}')
	if i >= 0 && j >= i {
		s = s[i : j+1]
	} else if i >= 0 {
		s = s[i:]
	}
	if json.Valid([]byte(s)) {
		return s
	}

	out, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return s
	}
	return out
}
