// Package decision 把语境与情绪转换为决策：可执行动作、安全拒绝或对话。
// 所有动作在执行前都要经过安全闸门，闸门出错时一律拒绝。
package decision

import "github.com/zhouzirui/z-companion/backend/internal/model/lexicon"

// Kind 标识决策的变体。
type Kind string

const (
	KindExecutable     Kind = "executable"
	KindRejected       Kind = "rejected"
	KindConversational Kind = "conversational"
)

// RejectCode 是拒绝原因的分类。
type RejectCode string

const (
	RejectUnsafeEnvironment RejectCode = "unsafe_environment"
	RejectDangerKeyword     RejectCode = "danger_keyword"
	RejectObstacle          RejectCode = "obstacle"
	RejectRestrictedArea    RejectCode = "restricted_area"
	RejectSpeedLimit        RejectCode = "speed_limit"
	RejectCheckFailed       RejectCode = "safety_check_failed"
	RejectMood              RejectCode = "mood"
	RejectRepetition        RejectCode = "repetition"
)

// Decision 是流水线的最终输出，三个变体字段中恰有一个非空。
type Decision struct {
	Kind           Kind            `json:"kind"`
	Executable     *Executable     `json:"executable,omitempty"`
	Rejected       *Rejected       `json:"rejected,omitempty"`
	Conversational *Conversational `json:"conversational,omitempty"`
}

// Executable 是通过全部闸门、已经记入指令历史的动作。
type Executable struct {
	Command          lexicon.CommandID `json:"command"`
	Action           string            `json:"action"`
	ResponseTemplate string            `json:"responseTemplate"`
	Vocabulary       []string          `json:"vocabularyConstraints"`
	SafetyScore      float64           `json:"safetyScore"`
}

// Rejected 是被某道闸门拦下的指令。Reason 用于追溯，Message 是面向用户的措辞。
type Rejected struct {
	Command    lexicon.CommandID `json:"command"`
	Code       RejectCode        `json:"code"`
	Reason     string            `json:"reason"`
	Message    string            `json:"message"`
	Vocabulary []string          `json:"vocabularyConstraints"`
}

// Conversational 表示不执行动作，只按词汇约束回复。
type Conversational struct {
	Intent     lexicon.Intent `json:"intent"`
	Vocabulary []string       `json:"vocabularyConstraints"`
}

// IsExecutable reports whether the decision carries an action.
func (d Decision) IsExecutable() bool {
	return d.Kind == KindExecutable && d.Executable != nil
}

// Vocabulary 返回下游生成回复时允许使用的词汇。
func (d Decision) Vocabulary() []string {
	switch {
	case d.Executable != nil:
		return d.Executable.Vocabulary
	case d.Rejected != nil:
		return d.Rejected.Vocabulary
	case d.Conversational != nil:
		return d.Conversational.Vocabulary
	default:
		return nil
	}
}

// SafetyAssessment 是单条指令的安全评估结果，Score 位于 [0,1]。
type SafetyAssessment struct {
	IsSafe bool       `json:"isSafe"`
	Code   RejectCode `json:"code,omitempty"`
	Reason string     `json:"reason,omitempty"`
	Score  float64    `json:"score"`

	phrase string // 面向用户的中文原因
}
