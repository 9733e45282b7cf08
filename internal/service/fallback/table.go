package fallback

// DefaultRules returns the built-in topic table.
func DefaultRules() []Rule {
	return []Rule{
		{
			Trigger:  "摩擦力",
			Response: "滑动摩擦力是物体相对滑动时产生的阻碍相对运动的力。它的大小与接触面间的正压力成正比，方向与物体相对运动方向相反。\n\n**计算公式：** f = μN\n其中：\n- f 是滑动摩擦力\n- μ 是滑动摩擦系数\n- N 是正压力\n\n**特点：**\n- 方向与相对运动方向相反\n- 大小与相对运动速度无关\n- 与接触面的性质和粗糙程度有关",
		},
		{
			Trigger:  "牛顿第一定律",
			Response: "牛顿第一定律，也称为**惯性定律**，表述为：任何物体在没有外力作用或合外力为零的情况下，都会保持静止状态或匀速直线运动状态。\n\n**要点：**\n1. 物体具有保持原有运动状态的性质，这种性质称为惯性\n2. 力不是维持物体运动的原因，而是改变物体运动状态的原因\n3. 该定律描述了物体的惯性，为后续牛顿定律奠定了基础",
		},
		{
			Trigger:  "加速度",
			Response: "物体的加速度可以通过以下公式计算：\n\n**基本公式：**\na = (v₂ - v₁) / t\n\n其中：\n- a 是加速度（m/s²）\n- v₁ 是初始速度（m/s）\n- v₂ 是末速度（m/s）\n- t 是时间间隔（s）\n\n**根据牛顿第二定律：**\na = F / m\n\n其中：\n- F 是合外力（N）\n- m 是物体质量（kg）\n\n加速度的方向与合外力的方向相同。",
		},
		{
			Trigger:  "动能势能",
			Response: "**动能**和**势能**是机械能的两种基本形式：\n\n**动能（Kinetic Energy）：**\n- 定义：物体由于运动而具有的能量\n- 公式：Ek = ½mv²\n- 单位：焦耳(J)\n- 标量，只有大小没有方向\n\n**势能（Potential Energy）：**\n- 定义：物体由于位置或状态而具有的能量\n- 重力势能：Ep = mgh\n- 弹性势能：Ep = ½kx²\n\n**机械能守恒定律：**\n在只有重力或弹力做功的情况下，物体的动能与势能之和保持不变。",
		},
	}
}

// DefaultTemplates returns the built-in replies for questions no rule matches.
func DefaultTemplates() []string {
	return []string{
		"关于\"%s\"这个问题，这是一个很好的学习问题。根据我的知识库，我建议您查阅相关的教材章节，或者提供更具体的问题描述，这样我能给出更准确的答案。",
		"您提到了\"%s\"，这涉及到重要的学科知识。为了给您提供更精确的回答，建议您：\n\n1. 明确问题的具体方面\n2. 提供相关的背景信息\n3. 说明您希望了解的深度\n\n这样我就能为您提供更有针对性的帮助。",
		"感谢您的提问：\"%s\"。基于RAG技术，我正在从知识库中检索相关信息。目前我找到了一些相关内容，但为了给您最准确的答案，建议您将问题表述得更加具体一些。",
	}
}

const demoTemplate = "感谢您的提问：\"%s\"。这是一个很好的学习问题。在实际部署中，EduAgent会通过RAG技术从知识库中检索相关信息并生成准确的答案。目前演示模式下，请尝试询问关于摩擦力、牛顿第一定律、加速度或动能势能的问题。"
