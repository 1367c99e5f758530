package decision

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/contextual"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
)

type turnRunner struct {
	rules   *lexicon.Ruleset
	context *contextual.Analyzer
	emotion *emotion.Analyzer
	maker   *Maker
}

func newRunner(rules *lexicon.Ruleset) *turnRunner {
	return &turnRunner{
		rules:   rules,
		context: contextual.NewAnalyzer(rules, nil, nil),
		emotion: emotion.NewAnalyzer(rules, rand.New(rand.NewPCG(1, 2)), nil),
		maker:   NewMaker(rules, rand.New(rand.NewPCG(3, 4)), nil),
	}
}

func (r *turnRunner) turn(text string, snap *scene.Snapshot) (*contextual.AnalysisContext, Decision) {
	ctx := r.context.Analyze(text, snap)
	emo := r.emotion.Analyze(ctx)
	return ctx, r.maker.Decide(ctx, emo)
}

func obstacleAt(d float64) *scene.Snapshot {
	return &scene.Snapshot{Obstacles: []scene.Obstacle{{Distance: &d}}}
}

func calm() emotion.Result {
	return emotion.Result{Emotion: lexicon.EmotionCalm}
}

func TestComeHereExecutes(t *testing.T) {
	r := newRunner(lexicon.Default())
	_, d := r.turn("过来", nil)

	require.True(t, d.IsExecutable())
	assert.Equal(t, KindExecutable, d.Kind)
	assert.Equal(t, "move_to_target", d.Executable.Action)
	assert.Equal(t, 1.0, d.Executable.SafetyScore)
	assert.Contains(t, lexicon.Default().Commands[lexicon.CommandCome].Templates, d.Executable.ResponseTemplate)
	assert.Equal(t, lexicon.Default().FullVocabulary(), d.Vocabulary())
	assert.Equal(t, []lexicon.CommandID{lexicon.CommandCome}, r.maker.History())
}

func TestComeHereWithCloseObstacleRejected(t *testing.T) {
	r := newRunner(lexicon.Default())
	_, d := r.turn("过来", obstacleAt(0.3))

	require.Equal(t, KindRejected, d.Kind)
	assert.Contains(t, d.Rejected.Reason, "obstacle")
	assert.Equal(t, RejectUnsafeEnvironment, d.Rejected.Code)
	assert.Contains(t, d.Rejected.Message, "当前环境不安全")
	assert.Empty(t, r.maker.History())
}

func TestGreetingIsConversational(t *testing.T) {
	r := newRunner(lexicon.Default())
	ctx, d := r.turn("你好", &scene.Snapshot{})

	assert.Equal(t, lexicon.IntentGreeting, ctx.Intent)
	assert.GreaterOrEqual(t, ctx.IntentConfidence, 0.6)
	require.Equal(t, KindConversational, d.Kind)
	assert.Equal(t, lexicon.IntentGreeting, d.Conversational.Intent)
	assert.Equal(t, []string{"你好", "早上好", "下午好", "晚上好", "再见"}, d.Vocabulary())
}

func TestRepeatedRunIsThrottled(t *testing.T) {
	r := newRunner(lexicon.Default())

	_, first := r.turn("快跑", nil)
	_, second := r.turn("快跑", nil)
	_, third := r.turn("快跑", nil)

	assert.True(t, first.IsExecutable())
	assert.True(t, second.IsExecutable())
	require.Equal(t, KindRejected, third.Kind)
	assert.Contains(t, third.Rejected.Reason, "too frequently")
	assert.Equal(t, RejectRepetition, third.Rejected.Code)
	assert.Len(t, r.maker.History(), 2)
}

func TestRepetitionWindowSlides(t *testing.T) {
	m := NewMaker(lexicon.Default(), rand.New(rand.NewPCG(1, 1)), nil)
	run := &contextual.AnalysisContext{Intent: lexicon.IntentCommand, Commands: []lexicon.CommandID{lexicon.CommandRun}, IsSafe: true}
	turn := &contextual.AnalysisContext{Intent: lexicon.IntentCommand, Commands: []lexicon.CommandID{lexicon.CommandTurn}, IsSafe: true}

	assert.True(t, m.Decide(run, calm()).IsExecutable())
	assert.True(t, m.Decide(turn, calm()).IsExecutable())
	assert.True(t, m.Decide(run, calm()).IsExecutable())
	assert.False(t, m.Decide(run, calm()).IsExecutable())
}

func TestDangerKeywordAlwaysRejected(t *testing.T) {
	r := newRunner(lexicon.Default())
	for _, text := range []string{"撞过来", "跳舞", "打转身", "快跑去踢球", "往前破坏它"} {
		ctx, d := r.turn(text, nil)
		require.Equal(t, lexicon.IntentCommand, ctx.Intent, text)
		require.Equal(t, KindRejected, d.Kind, text)
		assert.Equal(t, RejectDangerKeyword, d.Rejected.Code, text)
	}

	_, d := r.turn("撞打过来", nil)
	require.Equal(t, KindRejected, d.Kind)
	assert.Equal(t, "dangerous words in request: 撞, 打", d.Rejected.Reason)
}

func TestCloseObstacleRejectsEverySafetyCheckedCommand(t *testing.T) {
	rules := lexicon.Default()
	for _, id := range lexicon.AllCommands() {
		profile := rules.Commands[id]
		if !profile.RequiresSafetyCheck {
			continue
		}
		m := NewMaker(rules, rand.New(rand.NewPCG(1, 1)), nil)
		ctx := contextual.NewAnalyzer(rules, nil, nil).Analyze(profile.Triggers[0], obstacleAt(0.5))
		ctx.Intent = lexicon.IntentCommand

		d := m.Decide(ctx, calm())
		assert.Equal(t, KindRejected, d.Kind, id.String())
	}
}

func TestSceneChecks(t *testing.T) {
	cases := []struct {
		name string
		snap *scene.Snapshot
		code RejectCode
	}{
		{"far obstacle", obstacleAt(3), RejectObstacle},
		{"restricted area", &scene.Snapshot{Area: "厨房"}, RejectRestrictedArea},
		{"too fast", &scene.Snapshot{Speed: func() *float64 { v := 3.0; return &v }()}, RejectSpeedLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMaker(lexicon.Default(), rand.New(rand.NewPCG(1, 1)), nil)
			ctx := contextual.NewAnalyzer(lexicon.Default(), nil, nil).Analyze("过来", tc.snap)
			d := m.Decide(ctx, calm())
			require.Equal(t, KindRejected, d.Kind)
			assert.Equal(t, tc.code, d.Rejected.Code)
		})
	}
}

func TestBrokenSafetyThresholdsStillReject(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		snap *scene.Snapshot
		code RejectCode
	}{
		{"nan max speed", "safety:\n  max_speed: .nan\n", &scene.Snapshot{Speed: func() *float64 { v := 50.0; return &v }()}, RejectSpeedLimit},
		{"inf max speed", "safety:\n  max_speed: .inf\n", &scene.Snapshot{Speed: func() *float64 { v := 50.0; return &v }()}, RejectSpeedLimit},
		{"nan obstacle distance", "safety:\n  min_obstacle_distance: .nan\n", obstacleAt(0.3), RejectUnsafeEnvironment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules, err := lexicon.Load(strings.NewReader(tc.doc), nil)
			require.NoError(t, err)

			m := NewMaker(rules, rand.New(rand.NewPCG(1, 1)), nil)
			ctx := contextual.NewAnalyzer(rules, nil, nil).Analyze("快跑", tc.snap)
			d := m.Decide(ctx, calm())
			require.Equal(t, KindRejected, d.Kind)
			assert.Equal(t, tc.code, d.Rejected.Code)
			assert.Empty(t, m.History())
		})
	}
}

func TestMoodGateDoesNotConsumeHistory(t *testing.T) {
	m := NewMaker(lexicon.Default(), rand.New(rand.NewPCG(1, 1)), nil)
	ctx := &contextual.AnalysisContext{Intent: lexicon.IntentCommand, Commands: []lexicon.CommandID{lexicon.CommandTurn}, IsSafe: true}

	for _, mood := range []lexicon.EmotionID{lexicon.EmotionScared, lexicon.EmotionAngry} {
		d := m.Decide(ctx, emotion.Result{Emotion: mood})
		require.Equal(t, KindRejected, d.Kind)
		assert.Equal(t, "current mood unsuitable", d.Rejected.Reason)
	}
	assert.Empty(t, m.History())
}

func TestUnknownCommandFailsClosed(t *testing.T) {
	m := NewMaker(lexicon.Default(), rand.New(rand.NewPCG(1, 1)), nil)
	ctx := &contextual.AnalysisContext{Intent: lexicon.IntentCommand, Commands: []lexicon.CommandID{lexicon.CommandID(77)}, IsSafe: true}

	d := m.Decide(ctx, calm())
	require.Equal(t, KindRejected, d.Kind)
	assert.Equal(t, RejectCheckFailed, d.Rejected.Code)
	assert.Equal(t, "unable to complete safety check", d.Rejected.Reason)
}

func TestBestCandidateSelection(t *testing.T) {
	r := newRunner(lexicon.Default())
	ctx, d := r.turn("先向前再向左", nil)
	require.Equal(t, []lexicon.CommandID{lexicon.CommandLeft, lexicon.CommandForward}, ctx.Commands)
	require.True(t, d.IsExecutable())
	assert.Equal(t, lexicon.CommandLeft, d.Executable.Command)
	assert.Equal(t, []lexicon.CommandID{lexicon.CommandLeft}, r.maker.History(), "only the chosen command is recorded")

	// 可执行的指令优先于被拒绝的指令
	r = newRunner(lexicon.Default())
	_, d = r.turn("转身向前", obstacleAt(2))
	require.True(t, d.IsExecutable())
	assert.Equal(t, lexicon.CommandTurn, d.Executable.Command)

	// 全部被拒绝时返回最先评估的那条
	r = newRunner(lexicon.Default())
	_, d = r.turn("先向前再向左", obstacleAt(0.2))
	require.Equal(t, KindRejected, d.Kind)
	assert.Equal(t, lexicon.CommandLeft, d.Rejected.Command)
}

func TestSafetyScoreCountsRequiredChecks(t *testing.T) {
	rules := lexicon.Default()
	rules.Safety.RequiredChecks = []string{lexicon.CheckDistance, "bogus"}
	m := NewMaker(rules, rand.New(rand.NewPCG(1, 1)), nil)

	ctx := &contextual.AnalysisContext{OriginalText: "过来", Intent: lexicon.IntentCommand, Commands: []lexicon.CommandID{lexicon.CommandCome}, IsSafe: true}
	d := m.Decide(ctx, calm())
	require.True(t, d.IsExecutable())
	assert.Equal(t, 0.5, d.Executable.SafetyScore)

	rules = lexicon.Default()
	rules.Safety.RequiredChecks = nil
	m = NewMaker(rules, rand.New(rand.NewPCG(1, 1)), nil)
	d = m.Decide(ctx, calm())
	require.True(t, d.IsExecutable())
	assert.Equal(t, 1.0, d.Executable.SafetyScore)
}

func TestHistoryIsBounded(t *testing.T) {
	rules := lexicon.Default()
	m := NewMaker(rules, rand.New(rand.NewPCG(1, 1)), nil)
	for i := 0; i < 40; i++ {
		id := lexicon.AllCommands()[i%int(lexicon.CommandCount)]
		ctx := &contextual.AnalysisContext{Intent: lexicon.IntentCommand, Commands: []lexicon.CommandID{id}, IsSafe: true}
		m.Decide(ctx, calm())
		assert.LessOrEqual(t, len(m.History()), rules.CommandHistorySize)
	}
	assert.Len(t, m.History(), rules.CommandHistorySize)
}

func TestConversationalVocabulary(t *testing.T) {
	rules := lexicon.Default()
	m := NewMaker(rules, rand.New(rand.NewPCG(1, 1)), nil)

	d := m.Decide(&contextual.AnalysisContext{Intent: lexicon.IntentChat}, calm())
	require.Equal(t, KindConversational, d.Kind)
	assert.Equal(t, rules.FullVocabulary(), d.Vocabulary())

	d = m.Decide(&contextual.AnalysisContext{Intent: lexicon.IntentQuestion}, calm())
	assert.Equal(t, rules.Responses[lexicon.IntentQuestion], d.Vocabulary())

	d = m.Decide(&contextual.AnalysisContext{Intent: lexicon.IntentCommand}, calm())
	require.Equal(t, KindConversational, d.Kind)
	assert.Equal(t, lexicon.IntentChat, d.Conversational.Intent)

	d = m.Decide(nil, calm())
	assert.Equal(t, KindConversational, d.Kind)
}

func TestRejectMessageIsSeedDeterministic(t *testing.T) {
	ctx := contextual.NewAnalyzer(lexicon.Default(), nil, nil).Analyze("过来", obstacleAt(0.1))
	a := NewMaker(lexicon.Default(), rand.New(rand.NewPCG(9, 9)), nil).Decide(ctx, calm())
	b := NewMaker(lexicon.Default(), rand.New(rand.NewPCG(9, 9)), nil).Decide(ctx, calm())
	assert.Equal(t, a.Rejected.Message, b.Rejected.Message)
}

func TestRestoreHistory(t *testing.T) {
	m := NewMaker(lexicon.Default(), rand.New(rand.NewPCG(1, 1)), nil)
	m.Restore([]lexicon.CommandID{lexicon.CommandRun, lexicon.CommandID(99), lexicon.CommandRun})
	assert.Equal(t, []lexicon.CommandID{lexicon.CommandRun, lexicon.CommandRun}, m.History())

	ctx := &contextual.AnalysisContext{Intent: lexicon.IntentCommand, Commands: []lexicon.CommandID{lexicon.CommandRun}, IsSafe: true}
	assert.False(t, m.Decide(ctx, calm()).IsExecutable())
}

func TestSafetyScoreBounds(t *testing.T) {
	r := newRunner(lexicon.Default())
	d := 1.5
	snaps := []*scene.Snapshot{nil, obstacleAt(0.2), {Obstacles: []scene.Obstacle{{Distance: &d}}, Area: "客厅"}}
	for _, snap := range snaps {
		for _, text := range []string{"过来", "转身", "跟我来", "后退", "停下"} {
			_, dec := r.turn(text, snap)
			if dec.IsExecutable() {
				assert.GreaterOrEqual(t, dec.Executable.SafetyScore, 0.0)
				assert.LessOrEqual(t, dec.Executable.SafetyScore, 1.0)
			}
		}
	}
}
