package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-support/internal/errs"
	"github.com/ashwinyue/next-support/internal/service/agent"
)

// AgentSummary Agent 列表项
type AgentSummary struct {
	Type        agent.Type `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ToolCount   int        `json:"toolCount"`
}

// AgentHandler Agent 处理器
type AgentHandler struct {
	registry *agent.Registry
}

// NewAgentHandler 创建 Agent 处理器
func NewAgentHandler(registry *agent.Registry) *AgentHandler {
	return &AgentHandler{registry: registry}
}

// ListAgents 列出全部 Agent
// GET /api/v1/agents
func (h *AgentHandler) ListAgents(c *gin.Context) {
	all := h.registry.All()
	list := make([]AgentSummary, len(all))
	for i, a := range all {
		list[i] = AgentSummary{
			Type:        a.Type,
			Name:        a.Name,
			Description: a.Description,
			ToolCount:   len(a.Tools()),
		}
	}
	Success(c, gin.H{"agents": list, "total": len(list)})
}

// GetCapabilities Agent 能力描述
// GET /api/v1/agents/:type
func (h *AgentHandler) GetCapabilities(c *gin.Context) {
	a, err := h.lookup(c.Param("type"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, a.Capabilities())
}

// GetTools 导出工具定义，format 为 function 或 input_schema
// GET /api/v1/agents/:type/tools
func (h *AgentHandler) GetTools(c *gin.Context) {
	a, err := h.lookup(c.Param("type"))
	if err != nil {
		Error(c, err)
		return
	}
	switch c.DefaultQuery("format", "function") {
	case "function":
		Success(c, gin.H{"format": "function", "tools": a.FunctionTools()})
	case "input_schema":
		Success(c, gin.H{"format": "input_schema", "tools": a.InputSchemaTools()})
	default:
		Error(c, errs.Validation("Invalid format. Must be: function or input_schema"))
	}
}

func (h *AgentHandler) lookup(raw string) (*agent.Agent, error) {
	t, ok := agent.ParseType(raw)
	if !ok {
		return nil, errs.Validation("Invalid agent type. Must be: support, order, or billing")
	}
	a, ok := h.registry.Get(t)
	if !ok {
		return nil, errs.NotFound("Agent", raw)
	}
	return a, nil
}
