package contextual

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/segment"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
)

// 意图打分权重。
const (
	chatBaseScore       = 0.1
	commandMatchScore   = 0.6
	verbScore           = 0.1
	particleScore       = 0.1
	questionMarkScore   = 0.4
	questionWordScore   = 0.4
	greetingScore       = 0.6
	politeRequestScore  = 0.3
	toneWordScore       = 0.3
	toneParticleScore   = 0.1
	tonePatternScore    = 0.3
	minToneSignal       = 0.3
	fallbackConfidence  = 0.5
	comfortableHighTemp = 30.0
	comfortableLowTemp  = 10.0

	// 累加 0.1 带来的浮点误差不应改变同分判定
	scoreEpsilon = 1e-9
)

var (
	politeRequestPattern = regexp.MustCompile(`(请|麻烦|帮忙).*(好吗|可以吗)`)

	tonePatterns = []struct {
		tone    lexicon.Tone
		pattern *regexp.Regexp
	}{
		{lexicon.ToneImperative, regexp.MustCompile(`请.*吧`)},
		{lexicon.ToneEmphatic, regexp.MustCompile(`一定|必须|肯定`)},
		{lexicon.ToneHedging, regexp.MustCompile(`可能|也许|大概`)},
	}
)

// Analyzer 把原始文本与场景快照转换为 AnalysisContext。
// Analyzer 本身无状态，可在多个会话间共享。
type Analyzer struct {
	rules     *lexicon.Ruleset
	tokenizer segment.Tokenizer
	logger    logrus.FieldLogger
}

// NewAnalyzer 创建语境分析器。tokenizer 为 nil 时使用规则词典分词。
func NewAnalyzer(rules *lexicon.Ruleset, tokenizer segment.Tokenizer, logger logrus.FieldLogger) *Analyzer {
	if rules == nil {
		rules = lexicon.Default()
	}
	if tokenizer == nil {
		tokenizer = segment.NewLexiconFor(rules)
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &Analyzer{
		rules:     rules,
		tokenizer: tokenizer,
		logger:    logger.WithField("component", "context"),
	}
}

// Analyze 永不失败：分词出错时返回意图为 chat、置信度 0.5 的缺省语境。
func (a *Analyzer) Analyze(text string, snap *scene.Snapshot) *AnalysisContext {
	tokens, err := a.segment(text)
	if err != nil {
		a.logger.WithError(err).Error("context analysis failed, using default context")
		return defaultContext(text, snap)
	}

	ctx := &AnalysisContext{
		OriginalText: text,
		Tokens:       tokens,
		Keywords:     a.extractKeywords(tokens),
		Commands:     a.rules.MatchCommands(text),
		Emotions:     a.rules.MatchEmotions(text),
		IsSafe:       true,
	}
	ctx.Intent, ctx.IntentConfidence = a.scoreIntent(text, ctx)
	ctx.Tones = a.scoreTone(text, tokens)
	a.combineScene(ctx, snap)
	return ctx
}

func (a *Analyzer) segment(text string) (tokens []segment.Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tokenizer panic: %v", r)
		}
	}()
	return a.tokenizer.Segment(text), nil
}

func (a *Analyzer) extractKeywords(tokens []segment.Token) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, tok := range tokens {
		if !a.rules.IsVocabulary(tok.Word) {
			continue
		}
		if _, ok := seen[tok.Word]; ok {
			continue
		}
		seen[tok.Word] = struct{}{}
		keywords = append(keywords, tok.Word)
	}
	return keywords
}

func (a *Analyzer) scoreIntent(text string, ctx *AnalysisContext) (lexicon.Intent, float64) {
	scores := map[lexicon.Intent]float64{
		lexicon.IntentChat: chatBaseScore,
	}

	if len(ctx.Commands) > 0 {
		scores[lexicon.IntentCommand] += commandMatchScore
	}
	for _, tok := range ctx.Tokens {
		switch tok.Tag {
		case segment.TagVerb:
			scores[lexicon.IntentCommand] += verbScore
		case segment.TagParticle:
			scores[lexicon.IntentQuestion] += particleScore
		}
	}
	if strings.ContainsAny(text, "?？") {
		scores[lexicon.IntentQuestion] += questionMarkScore
	}
	if intersects(ctx.Keywords, a.rules.Vocabulary.Questions) {
		scores[lexicon.IntentQuestion] += questionWordScore
	}
	if intersects(ctx.Keywords, a.rules.Vocabulary.Greetings) {
		scores[lexicon.IntentGreeting] += greetingScore
	}
	if politeRequestPattern.MatchString(text) {
		scores[lexicon.IntentCommand] += politeRequestScore
	}

	// 严格大于：同分时优先级靠前的类别胜出
	best := lexicon.IntentPriority[0]
	for _, intent := range lexicon.IntentPriority[1:] {
		if scores[intent] > scores[best]+scoreEpsilon {
			best = intent
		}
	}
	return best, math.Min(scores[best], 1)
}

func (a *Analyzer) scoreTone(text string, tokens []segment.Token) map[lexicon.Tone]float64 {
	scores := make(map[lexicon.Tone]float64, len(lexicon.AllTones))
	for _, tok := range tokens {
		for _, tone := range lexicon.AllTones {
			if contains(a.rules.ToneWords[tone], tok.Word) {
				scores[tone] += toneWordScore
			}
		}
		if tok.Tag == segment.TagParticle {
			scores[lexicon.ToneInterrogative] += toneParticleScore
			scores[lexicon.ToneExclamatory] += toneParticleScore
		}
	}
	for _, p := range tonePatterns {
		if p.pattern.MatchString(text) {
			scores[p.tone] += tonePatternScore
		}
	}

	var maxScore float64
	for _, v := range scores {
		maxScore = math.Max(maxScore, v)
	}
	signals := make(map[lexicon.Tone]float64)
	if maxScore == 0 {
		return signals
	}
	for tone, v := range scores {
		if normalized := v / maxScore; normalized >= minToneSignal {
			signals[tone] = normalized
		}
	}
	return signals
}

func (a *Analyzer) combineScene(ctx *AnalysisContext, snap *scene.Snapshot) {
	if snap == nil {
		return
	}
	ctx.Scene = snap
	if len(snap.Malformed) > 0 {
		a.logger.WithField("fields", snap.Malformed).Warn("ignoring malformed scene fields")
	}

	ctx.HasObstacles = snap.HasObstacles()
	if nearest, ok := snap.NearestObstacle(); ok && nearest < a.rules.Safety.MinObstacleDistance {
		ctx.IsSafe = false
	}
	ctx.SceneImpact = sceneImpact(snap)
}

func sceneImpact(snap *scene.Snapshot) map[ImpactSource]Impact {
	impact := make(map[ImpactSource]Impact)

	if temp, ok := snap.TemperatureCelsius(); ok {
		switch {
		case temp > comfortableHighTemp:
			impact[ImpactTemperature] = Impact{Kind: ImpactDiscomfort, Degree: math.Min((temp-comfortableHighTemp)/10, 1)}
		case temp < comfortableLowTemp:
			impact[ImpactTemperature] = Impact{Kind: ImpactDiscomfort, Degree: math.Min((comfortableLowTemp-temp)/10, 1)}
		}
	}

	if level, ok := snap.LightingLevel(); ok {
		switch level {
		case scene.LightingDark:
			impact[ImpactLighting] = Impact{Kind: ImpactUnease, Degree: 0.7}
		case scene.LightingDim:
			impact[ImpactLighting] = Impact{Kind: ImpactAlert, Degree: 0.4}
		}
	}

	if snap.ReportsDanger() {
		impact[ImpactSafety] = Impact{Kind: ImpactDanger, Degree: 0.8}
	}
	return impact
}

func defaultContext(text string, snap *scene.Snapshot) *AnalysisContext {
	return &AnalysisContext{
		OriginalText:     text,
		Intent:           lexicon.IntentChat,
		IntentConfidence: fallbackConfidence,
		Tones:            map[lexicon.Tone]float64{},
		Scene:            snap,
		HasObstacles:     snap.HasObstacles(),
		IsSafe:           true,
	}
}

func intersects(words, set []string) bool {
	for _, w := range words {
		if contains(set, w) {
			return true
		}
	}
	return false
}

func contains(list []string, word string) bool {
	for _, w := range list {
		if w == word {
			return true
		}
	}
	return false
}
