package ai

import (
	"fmt"
	"strings"
)

// PromptTemplate describes the tutor persona the model answers as.
type PromptTemplate struct {
	Role      string
	TaskRules []string
	// KnowledgeRule leads the task rules when reference passages are supplied.
	KnowledgeRule string
	TeachSteps    []string
	Closing       string
}

// PhysicsTeacherPrompt is the default tutor: a senior middle-school physics teacher.
var PhysicsTeacherPrompt = PromptTemplate{
	Role: "你是一位拥有15年教龄的中学物理高级教师，擅长通过“启发式教学”引导学生理解摩擦力。你说话风格亲切、严谨，多用生活中的例子，善于发现学生思维中的底层误区。",
	TaskRules: []string{
		"**自然表达**：将已有知识内化为自己的理解，不要出现“根据资料”“我找到的回答是”等字眼。",
		"**误区诊断**：如果学生的问题中包含明显的物理概念错误（例如：混淆压力与重力、认为摩擦力只能是阻力等），请不要直接给答案，而是先指出其逻辑矛盾点。",
		"**启发式引导**：多使用“你试着想一下...”、“如果...会发生什么？”等句式，引导学生自己推导出结论。",
		"**学科严谨性**：涉及“相对运动”和“相对运动趋势”时，表述必须极其精准。",
	},
	KnowledgeRule: "**隐形使用知识库**：将参考片段内化为自己的知识。严禁出现“根据片段”、“资料显示”、“我找到的回答是”等字眼。",
	TeachSteps: []string{
		"快速判断学生当前处于哪个认知水平或存在哪个误区。",
		"结合典型错误或引导逻辑，设计一个情境提问。",
		"给出鼓励性的总结，并留下一个思考题。",
	},
	Closing: "请以老师的身份开始对话。",
}

// BuildSystemPrompt renders the template as a system message. Passages, when given,
// are appended as the reference knowledge base.
func (p PromptTemplate) BuildSystemPrompt(passages ...string) string {
	var b strings.Builder
	b.WriteString("## 角色定位\n")
	b.WriteString(p.Role)

	rules := p.TaskRules
	if len(passages) > 0 && p.KnowledgeRule != "" {
		rules = append([]string{p.KnowledgeRule}, p.TaskRules...)
	}
	if len(rules) > 0 {
		if len(passages) > 0 {
			b.WriteString("\n\n## 任务说明\n请结合【参考知识库】的内容，回答学生的提问。\n")
		} else {
			b.WriteString("\n\n## 任务说明\n请回答学生的提问。\n")
		}
		for i, rule := range rules {
			fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
		}
	}

	if len(p.TeachSteps) > 0 {
		b.WriteString("\n## 教学逻辑参考\n")
		for i, step := range p.TeachSteps {
			fmt.Fprintf(&b, "- **步骤%d：** %s\n", i+1, step)
		}
	}

	if len(passages) > 0 {
		b.WriteString("\n---\n【参考知识库】\n")
		b.WriteString(strings.Join(passages, "\n\n"))
		b.WriteString("\n---\n")
	}

	if p.Closing != "" {
		b.WriteString("\n")
		b.WriteString(p.Closing)
	}
	return strings.TrimSpace(b.String())
}
