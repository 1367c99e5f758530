package emotion

import (
	"io"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/contextual"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
)

const (
	historyWeight      = 0.5
	maxScorePerSource  = 4.0
	fallbackConfidence = 0.5
	scoreEpsilon       = 1e-9

	unsafeSpeedFactor  = 1.2
	unsafeVolumeFactor = 0.8
	commandSpeedFactor = 1.1
)

// 各意图类别对情绪的先验加分。
var intentPriors = map[lexicon.Intent]map[lexicon.EmotionID]float64{
	lexicon.IntentGreeting: {lexicon.EmotionFriendly: 0.8, lexicon.EmotionHappy: 0.6},
	lexicon.IntentCommand:  {lexicon.EmotionExcited: 0.7, lexicon.EmotionFriendly: 0.5},
	lexicon.IntentQuestion: {lexicon.EmotionSurprised: 0.6, lexicon.EmotionFriendly: 0.4},
	lexicon.IntentChat:     {lexicon.EmotionCalm: 0.5, lexicon.EmotionFriendly: 0.3},
}

// Result 是一次情绪分析的输出。
type Result struct {
	Emotion    lexicon.EmotionID   `json:"emotion"`
	Label      string              `json:"label"`
	Expression string              `json:"expression"`
	Params     lexicon.Params      `json:"params"`
	History    []lexicon.EmotionID `json:"history"`
	Confidence float64             `json:"confidence"`
	Voice      Voice               `json:"voice"`
	// Degraded 为 true 表示打分失败，沿用了上一次的情绪。
	Degraded bool `json:"degraded,omitempty"`
}

// Analyzer 维护单个会话的情绪状态。Analyzer 不是并发安全的，
// 同一会话的调用需要由调用方串行化。
type Analyzer struct {
	rules  *lexicon.Ruleset
	rng    *rand.Rand
	logger logrus.FieldLogger
	state  State
}

// NewAnalyzer 创建情绪分析器。rng 用于同分时的随机选择，测试中可传入固定种子。
func NewAnalyzer(rules *lexicon.Ruleset, rng *rand.Rand, logger logrus.FieldLogger) *Analyzer {
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
	return &Analyzer{
		rules:  rules,
		rng:    rng,
		logger: logger.WithField("component", "emotion"),
		state:  State{Current: rules.DefaultEmotion},
	}
}

// Analyze 根据语境选出情绪并推导语音参数，同时更新会话情绪状态。
func (a *Analyzer) Analyze(ctx *contextual.AnalysisContext) Result {
	if ctx == nil {
		return a.fallback("nil context")
	}

	scores := a.score(ctx)
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return a.fallback("non-finite emotion score")
		}
	}
	best, maxScore := a.pick(scores)

	selected := best
	if len(ctx.Emotions) > 0 && ctx.Emotions[0].Valid() {
		// 关键词证据优先于推导分数
		selected = ctx.Emotions[0]
	}
	confidence := clamp01(maxScore / (float64(lexicon.EmotionCount) * maxScorePerSource))

	params, ok := a.adjust(selected, ctx, confidence)
	if !ok {
		return a.fallback("non-finite voice params")
	}

	previous := a.state.Current
	if !a.rules.TransitionAllowed(previous, selected) {
		a.logger.WithFields(logrus.Fields{
			"from": previous.String(),
			"to":   selected.String(),
		}).Debug("emotion transition outside configured graph")
	}
	a.update(selected)

	return a.result(selected, params, confidence)
}

// State 返回当前情绪状态的副本。
func (a *Analyzer) State() State {
	return a.state.clone()
}

// Restore 用持久化的快照恢复状态。非法的情绪被丢弃，超出容量的历史只保留最近的部分。
func (a *Analyzer) Restore(s State) {
	restored := State{Current: a.rules.DefaultEmotion}
	if s.Current.Valid() {
		restored.Current = s.Current
	}
	for _, id := range s.History {
		if id.Valid() {
			restored.History = append(restored.History, id)
		}
	}
	if limit := a.rules.EmotionHistorySize; len(restored.History) > limit {
		restored.History = restored.History[len(restored.History)-limit:]
	}
	a.state = restored
}

func (a *Analyzer) score(ctx *contextual.AnalysisContext) [lexicon.EmotionCount]float64 {
	var scores [lexicon.EmotionCount]float64

	for _, id := range lexicon.AllEmotions() {
		scores[id] += keywordScore(a.rules.Emotions[id].Triggers, ctx)
	}

	for id, prior := range intentPriors[ctx.Intent] {
		scores[id] += prior
	}

	if n := len(a.state.History); n > 0 {
		for _, id := range a.state.History {
			scores[id] += historyWeight / float64(n)
		}
	}

	if !ctx.IsSafe {
		scores[lexicon.EmotionScared] += 0.8
		scores[lexicon.EmotionSurprised] += 0.6
	}
	if ctx.HasObstacles {
		scores[lexicon.EmotionScared] += 0.4
	}
	if temp, ok := ctx.Temperature(); ok {
		switch {
		case temp > 30:
			scores[lexicon.EmotionAngry] += 0.3
		case temp < 10:
			scores[lexicon.EmotionSad] += 0.3
		}
	}
	return scores
}

// keywordScore 是命中的触发词占该情绪全部触发词的比例。
func keywordScore(triggers []string, ctx *contextual.AnalysisContext) float64 {
	unique := make(map[string]struct{}, len(triggers))
	for _, w := range triggers {
		if w != "" {
			unique[w] = struct{}{}
		}
	}
	if len(unique) == 0 {
		return 0
	}
	var hits int
	for w := range unique {
		if ctx.HasKeyword(w) {
			hits++
		}
	}
	return float64(hits) / float64(len(unique))
}

// pick 返回最高分的情绪，同分时随机选择。
func (a *Analyzer) pick(scores [lexicon.EmotionCount]float64) (lexicon.EmotionID, float64) {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	var tied []lexicon.EmotionID
	for _, id := range lexicon.AllEmotions() {
		if math.Abs(scores[id]-maxScore) <= scoreEpsilon {
			tied = append(tied, id)
		}
	}
	switch len(tied) {
	case 0:
		return a.state.Current, maxScore
	case 1:
		return tied[0], maxScore
	default:
		return tied[a.rng.IntN(len(tied))], maxScore
	}
}

func (a *Analyzer) adjust(id lexicon.EmotionID, ctx *contextual.AnalysisContext, confidence float64) (lexicon.Params, bool) {
	base := a.rules.Emotions[id].Params
	p := lexicon.Params{
		SpeechSpeed: blend(base.SpeechSpeed, confidence),
		Volume:      blend(base.Volume, confidence),
		Pitch:       blend(base.Pitch, confidence),
	}
	if !ctx.IsSafe {
		p.SpeechSpeed *= unsafeSpeedFactor
		p.Volume *= unsafeVolumeFactor
	}
	if ctx.Intent == lexicon.IntentCommand {
		p.SpeechSpeed *= commandSpeedFactor
	}
	for _, v := range []float64{p.SpeechSpeed, p.Volume, p.Pitch} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return lexicon.Params{}, false
		}
	}
	return a.clampParams(p), true
}

// blend 将参数按置信度向中性值 1.0 拉近。
func blend(v, confidence float64) float64 {
	return v*confidence + 1.0*(1-confidence)
}

func (a *Analyzer) clampParams(p lexicon.Params) lexicon.Params {
	return lexicon.Params{
		SpeechSpeed: a.rules.SpeechSpeedRange.Clamp(p.SpeechSpeed),
		Volume:      a.rules.VolumeRange.Clamp(p.Volume),
		Pitch:       a.rules.PitchRange.Clamp(p.Pitch),
	}
}

func (a *Analyzer) update(id lexicon.EmotionID) {
	a.state.Current = id
	a.state.History = append(a.state.History, id)
	if limit := a.rules.EmotionHistorySize; len(a.state.History) > limit {
		a.state.History = append([]lexicon.EmotionID(nil), a.state.History[len(a.state.History)-limit:]...)
	}
}

// fallback 保持会话状态不变，返回上一次的情绪与缺省参数。
func (a *Analyzer) fallback(reason string) Result {
	a.logger.WithField("reason", reason).Error("emotion analysis failed, keeping previous emotion")
	params := a.clampParams(a.rules.Emotions[a.rules.DefaultEmotion].Params)
	res := a.result(a.state.Current, params, fallbackConfidence)
	res.Degraded = true
	return res
}

func (a *Analyzer) result(id lexicon.EmotionID, params lexicon.Params, confidence float64) Result {
	return Result{
		Emotion:    id,
		Label:      id.Label(),
		Expression: a.rules.Emotions[id].Expression,
		Params:     params,
		History:    a.state.clone().History,
		Confidence: confidence,
		Voice:      VoiceFor(id, confidence),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
