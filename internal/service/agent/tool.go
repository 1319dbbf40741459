package agent

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Kind 参数类型
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindArray   Kind = "array"
)

// Param 工具参数声明
type Param struct {
	Name        string
	Kind        Kind
	Description string
	Optional    bool
	Enum        []string
}

// IsOptional 显式标记，或描述中包含 "optional"
func (p Param) IsOptional() bool {
	return p.Optional || strings.Contains(strings.ToLower(p.Description), "optional")
}

// ExecuteFunc 工具执行函数，预期内的失败以结果对象返回，error 只用于意外故障
type ExecuteFunc func(ctx context.Context, params Params, userID string) (any, error)

// Tool 工具声明
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Execute     ExecuteFunc
}

func (k Kind) dataType() schema.DataType {
	switch k {
	case KindNumber:
		return schema.Number
	case KindBoolean:
		return schema.Boolean
	case KindArray:
		return schema.Array
	default:
		return schema.String
	}
}

// ToolInfo 转换为 eino 工具声明
func (t *Tool) ToolInfo() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(t.Params))
	for _, p := range t.Params {
		info := &schema.ParameterInfo{
			Type:     p.Kind.dataType(),
			Desc:     p.Description,
			Enum:     p.Enum,
			Required: !p.IsOptional(),
		}
		if p.Kind == KindArray {
			info.ElemInfo = &schema.ParameterInfo{Type: schema.String}
		}
		params[p.Name] = info
	}
	return &schema.ToolInfo{
		Name:        t.Name,
		Desc:        t.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// ========== 导出格式 ==========

// Property JSON Schema 属性
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Enum        []string  `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// ObjectSchema JSON Schema 对象
type ObjectSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// FunctionDefinition 函数声明
type FunctionDefinition struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Parameters  ObjectSchema `json:"parameters"`
}

// FunctionTool 扁平的 function-call 格式
type FunctionTool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// InputSchemaTool input_schema 格式
type InputSchemaTool struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	InputSchema ObjectSchema `json:"input_schema"`
}

// ObjectSchema 参数声明的 JSON Schema
func (t *Tool) ObjectSchema() ObjectSchema {
	s := ObjectSchema{
		Type:       "object",
		Properties: make(map[string]Property, len(t.Params)),
		Required:   []string{},
	}
	for _, p := range t.Params {
		prop := Property{Type: string(p.Kind), Description: p.Description, Enum: p.Enum}
		if p.Kind == KindArray {
			prop.Items = &Property{Type: string(KindString)}
		}
		s.Properties[p.Name] = prop
		if !p.IsOptional() {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

// FunctionTool 导出为 function-call 格式
func (t *Tool) FunctionTool() FunctionTool {
	return FunctionTool{
		Type: "function",
		Function: FunctionDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.ObjectSchema(),
		},
	}
}

// InputSchemaTool 导出为 input_schema 格式
func (t *Tool) InputSchemaTool() InputSchemaTool {
	return InputSchemaTool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: t.ObjectSchema(),
	}
}
