package decision

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/contextual"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
)

const repetitionWindow = 3

// 拒绝措辞模板：%[1]s 为指令名称，%[2]s 为原因。
var rejectTemplates = [...]string{
	"对不起,%[2]s",
	"抱歉,%[2]s",
	"我不能%[1]s,%[2]s",
	"现在不能%[1]s,因为%[2]s",
	"执行%[1]s可能有风险,%[2]s",
}

// Maker 为单个会话做决策并维护该会话的指令历史。Maker 不是并发安全的。
type Maker struct {
	rules   *lexicon.Ruleset
	rng     *rand.Rand
	logger  logrus.FieldLogger
	history *CommandHistory
}

// NewMaker 创建决策器。rng 用于选择回复模板与拒绝措辞。
func NewMaker(rules *lexicon.Ruleset, rng *rand.Rand, logger logrus.FieldLogger) *Maker {
	if rules == nil {
		rules = lexicon.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Maker{
		rules:   rules,
		rng:     rng,
		logger:  logger.WithField("component", "decision"),
		history: NewCommandHistory(rules.CommandHistorySize),
	}
}

// candidate 是一条指令的评估结果，尚未产生任何副作用。
type candidate struct {
	id         lexicon.CommandID
	assessment SafetyAssessment
}

// Decide 生成决策。只有最终被选中的可执行指令才会写入指令历史。
func (m *Maker) Decide(ctx *contextual.AnalysisContext, emo emotion.Result) Decision {
	if ctx == nil {
		return m.conversational(lexicon.IntentChat)
	}
	if ctx.Intent != lexicon.IntentCommand || len(ctx.Commands) == 0 {
		return m.conversational(ctx.Intent)
	}

	candidates := make([]candidate, 0, len(ctx.Commands))
	for _, id := range ctx.Commands {
		candidates = append(candidates, m.evaluate(id, ctx, emo))
	}

	best := selectBest(candidates)
	if !best.assessment.IsSafe {
		m.logger.WithFields(logrus.Fields{
			"command": best.id.String(),
			"code":    best.assessment.Code,
			"reason":  best.assessment.Reason,
		}).Info("command rejected")
		return m.reject(best)
	}
	return m.commit(best)
}

// History 返回指令历史的副本。
func (m *Maker) History() []lexicon.CommandID {
	return m.history.Items()
}

// Restore 用持久化的快照恢复指令历史，非法项被丢弃。
func (m *Maker) Restore(items []lexicon.CommandID) {
	h := NewCommandHistory(m.rules.CommandHistorySize)
	for _, id := range items {
		if id.Valid() {
			h.Push(id)
		}
	}
	m.history = h
}

// evaluate 依次经过安全、情绪、重复三道闸门。
func (m *Maker) evaluate(id lexicon.CommandID, ctx *contextual.AnalysisContext, emo emotion.Result) candidate {
	assessment := m.assessSafety(id, ctx)
	if !assessment.IsSafe {
		return candidate{id: id, assessment: assessment}
	}

	switch emo.Emotion {
	case lexicon.EmotionScared, lexicon.EmotionAngry:
		return candidate{id: id, assessment: unsafe(RejectMood, "current mood unsuitable", "我现在的心情不太好")}
	}

	if m.history.CountRecent(id, repetitionWindow) >= 2 {
		return candidate{id: id, assessment: unsafe(RejectRepetition, "action performed too frequently recently", "这个动作最近做得太频繁了")}
	}
	return candidate{id: id, assessment: assessment}
}

// selectBest 优先选择安全得分最高的可执行指令；都被拒绝时返回最先评估的那条。
func selectBest(candidates []candidate) candidate {
	var best *candidate
	for i := range candidates {
		c := &candidates[i]
		if !c.assessment.IsSafe {
			continue
		}
		if best == nil || c.assessment.Score > best.assessment.Score {
			best = c
		}
	}
	if best != nil {
		return *best
	}
	return candidates[0]
}

func (m *Maker) commit(c candidate) Decision {
	profile, _ := m.rules.Command(c.id)
	m.history.Push(c.id)

	return Decision{
		Kind: KindExecutable,
		Executable: &Executable{
			Command:          c.id,
			Action:           profile.Action,
			ResponseTemplate: m.pickTemplate(profile.Templates),
			Vocabulary:       m.rules.FullVocabulary(),
			SafetyScore:      c.assessment.Score,
		},
	}
}

// pickTemplate 从模板中随机选择一条。模板目前不区分情绪，全部视为合适。
func (m *Maker) pickTemplate(templates []string) string {
	if len(templates) == 0 {
		return ""
	}
	return templates[m.rng.IntN(len(templates))]
}

func (m *Maker) reject(c candidate) Decision {
	display := c.id.String()
	if profile, ok := m.rules.Command(c.id); ok && profile.Display != "" {
		display = profile.Display
	}
	tmpl := rejectTemplates[m.rng.IntN(len(rejectTemplates))]

	return Decision{
		Kind: KindRejected,
		Rejected: &Rejected{
			Command:    c.id,
			Code:       c.assessment.Code,
			Reason:     c.assessment.Reason,
			Message:    fmt.Sprintf(tmpl, display, c.assessment.phrase),
			Vocabulary: m.rules.FullVocabulary(),
		},
	}
}

func (m *Maker) conversational(intent lexicon.Intent) Decision {
	responseType := lexicon.IntentChat
	switch intent {
	case lexicon.IntentGreeting, lexicon.IntentQuestion:
		responseType = intent
	}
	return Decision{
		Kind: KindConversational,
		Conversational: &Conversational{
			Intent:     responseType,
			Vocabulary: m.rules.ResponseVocabulary(responseType),
		},
	}
}
