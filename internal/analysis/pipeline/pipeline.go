// Package pipeline 串联语境分析、情绪分析与决策三个阶段，是核心对外的唯一入口。
package pipeline

import (
	"math/rand/v2"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/contextual"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/decision"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/segment"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
)

// Outcome 是一轮处理的全部输出。
type Outcome struct {
	Context  *contextual.AnalysisContext `json:"context"`
	Emotion  emotion.Result              `json:"emotion"`
	Decision decision.Decision           `json:"decision"`
}

// State 是需要跨请求保留的会话状态。
type State struct {
	Emotion  emotion.State       `json:"emotion"`
	Commands []lexicon.CommandID `json:"commands"`
}

// Pipeline 属于单个会话。Process 在会话锁内同步执行，不做任何 I/O。
type Pipeline struct {
	mu      sync.Mutex
	rules   *lexicon.Ruleset
	context *contextual.Analyzer
	emotion *emotion.Analyzer
	maker   *decision.Maker
}

// New 创建会话流水线。rng 为 nil 时使用随机种子。
func New(rules *lexicon.Ruleset, tokenizer segment.Tokenizer, rng *rand.Rand, logger logrus.FieldLogger) *Pipeline {
	if rules == nil {
		rules = lexicon.Default()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Pipeline{
		rules:   rules,
		context: contextual.NewAnalyzer(rules, tokenizer, logger),
		emotion: emotion.NewAnalyzer(rules, rng, logger),
		maker:   decision.NewMaker(rules, rng, logger),
	}
}

// Process 处理一轮输入：text -> 语境 -> 情绪 -> 决策。
func (p *Pipeline) Process(text string, snap *scene.Snapshot) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx := p.context.Analyze(text, snap)
	emo := p.emotion.Analyze(ctx)
	return Outcome{
		Context:  ctx,
		Emotion:  emo,
		Decision: p.maker.Decide(ctx, emo),
	}
}

// State 返回当前会话状态的副本。
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{Emotion: p.emotion.State(), Commands: p.maker.History()}
}

// Restore 用持久化的状态恢复会话。
func (p *Pipeline) Restore(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emotion.Restore(s.Emotion)
	p.maker.Restore(s.Commands)
}

// Rules 返回会话创建时绑定的规则快照。
func (p *Pipeline) Rules() *lexicon.Ruleset {
	return p.rules
}
