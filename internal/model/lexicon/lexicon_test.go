package lexicon

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesetIsValid(t *testing.T) {
	rules := Default()
	require.NoError(t, rules.Validate())

	for _, id := range AllCommands() {
		c := rules.Commands[id]
		assert.NotEmpty(t, c.Action, id.String())
		assert.GreaterOrEqual(t, len(c.Triggers), 3, id.String())
		assert.NotEmpty(t, c.Templates, id.String())
	}
	assert.Equal(t, EmotionCalm, rules.DefaultEmotion)
	assert.Equal(t, 5, rules.EmotionHistorySize)
	assert.Equal(t, 10, rules.CommandHistorySize)
}

func TestParseNames(t *testing.T) {
	id, ok := ParseCommand("Come")
	require.True(t, ok)
	assert.Equal(t, CommandCome, id)

	e, ok := ParseEmotion("害怕")
	require.True(t, ok)
	assert.Equal(t, EmotionScared, e)

	e, ok = ParseEmotion("生气")
	require.True(t, ok)
	assert.Equal(t, EmotionAngry, e)

	_, ok = ParseEmotion("grumpy")
	assert.False(t, ok)
}

func TestEmotionTextRoundTrip(t *testing.T) {
	text, err := EmotionFriendly.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "friendly", string(text))

	var got EmotionID
	require.NoError(t, got.UnmarshalText([]byte("shy")))
	assert.Equal(t, EmotionShy, got)

	_, err = EmotionID(200).MarshalText()
	assert.Error(t, err)
}

func TestMatchCommandsKeepsTableOrder(t *testing.T) {
	rules := Default()
	got := rules.MatchCommands("先向前再向左")
	assert.Equal(t, []CommandID{CommandLeft, CommandForward}, got)
	assert.Empty(t, rules.MatchCommands("今天天气不错"))
}

func TestResponseVocabularyFallsBackToFullVocabulary(t *testing.T) {
	rules := Default()
	assert.Equal(t, rules.Responses[IntentGreeting], rules.ResponseVocabulary(IntentGreeting))
	assert.Equal(t, rules.FullVocabulary(), rules.ResponseVocabulary(IntentChat))
	assert.True(t, rules.IsVocabulary("苹果"))
	assert.False(t, rules.IsVocabulary("火箭"))
}

func TestTransitionAllowed(t *testing.T) {
	rules := Default()
	assert.True(t, rules.TransitionAllowed(EmotionCalm, EmotionHappy))
	assert.True(t, rules.TransitionAllowed(EmotionShy, EmotionShy))
	assert.False(t, rules.TransitionAllowed(EmotionHappy, EmotionAngry))
}

func TestLoadOverlaysTables(t *testing.T) {
	doc := `
safety:
  min_obstacle_distance: 0.5
  restricted_areas: [机房]
emotion:
  history_size: 3
  pitch_range: [0.95, 1.1]
decision:
  history_size: 4
`
	rules, err := Load(strings.NewReader(doc), nil)
	require.NoError(t, err)

	assert.Equal(t, 0.5, rules.Safety.MinObstacleDistance)
	assert.True(t, rules.IsRestrictedArea("机房"))
	assert.False(t, rules.IsRestrictedArea("厨房"))
	assert.Equal(t, Default().Safety.DangerKeywords, rules.Safety.DangerKeywords)
	assert.Equal(t, 3, rules.EmotionHistorySize)
	assert.Equal(t, 4, rules.CommandHistorySize)
	assert.Equal(t, Range{Min: 0.95, Max: 1.1}, rules.PitchRange)
	assert.Equal(t, "move_to_target", rules.Commands[CommandCome].Action)
}

func TestLoadMalformedTableFallsBackToEmpty(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	doc := `
commands: [not, a, map]
emotions:
  happy:
    triggers: [耶]
    params: {speech_speed: 1.2, volume: 1.1, pitch: 1.1}
`
	rules, err := Load(strings.NewReader(doc), logger)
	require.NoError(t, err)

	assert.Empty(t, rules.MatchCommands("过来"))
	assert.Equal(t, []EmotionID{EmotionHappy}, rules.MatchEmotions("耶"))
	assert.Empty(t, rules.Emotions[EmotionSad].Triggers)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "commands", hook.LastEntry().Data["table"])
}

func TestLoadRestoresInvalidNumbers(t *testing.T) {
	doc := `
emotion:
  history_size: -2
  volume_range: [1.5, 0.5]
`
	rules, err := Load(strings.NewReader(doc), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, rules.EmotionHistorySize)
	assert.Equal(t, Default().VolumeRange, rules.VolumeRange)
}

func TestLoadRestoresNonFiniteSafetyThresholds(t *testing.T) {
	cases := map[string]string{
		"nan speed":         "safety:\n  max_speed: .nan\n",
		"inf speed":         "safety:\n  max_speed: .inf\n",
		"negative speed":    "safety:\n  max_speed: -1\n",
		"nan distance":      "safety:\n  min_obstacle_distance: .nan\n",
		"infinite distance": "safety:\n  min_obstacle_distance: .inf\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			rules, err := Load(strings.NewReader(doc), nil)
			require.NoError(t, err)
			assert.Equal(t, Default().Safety.MaxSpeed, rules.Safety.MaxSpeed)
			assert.Equal(t, Default().Safety.MinObstacleDistance, rules.Safety.MinObstacleDistance)
			assert.NoError(t, rules.Validate())
		})
	}
}

func TestValidateRejectsNonFiniteThresholds(t *testing.T) {
	rules := Default()
	rules.Safety.MaxSpeed = math.NaN()
	assert.ErrorIs(t, rules.Validate(), ErrRulesetInvalid)

	rules = Default()
	rules.Safety.MinObstacleDistance = math.Inf(1)
	assert.ErrorIs(t, rules.Validate(), ErrRulesetInvalid)

	rules = Default()
	rules.PitchRange = Range{Min: 0.9, Max: math.NaN()}
	assert.ErrorIs(t, rules.Validate(), ErrRulesetInvalid)
}

func TestLoadCommandKeepsBuiltinSafetyFlag(t *testing.T) {
	doc := `
commands:
  run:
    action: run_fast
    triggers: [快跑]
  stop:
    action: stop_moving
    triggers: [停]
  dance:
    action: dance
    requires_safety_check: true
    triggers: [转圈]
  follow:
    action: follow_user
    requires_safety_check: false
    triggers: [跟着]
`
	rules, err := Load(strings.NewReader(doc), nil)
	require.NoError(t, err)
	// 省略时沿用内置值
	assert.True(t, rules.Commands[CommandRun].RequiresSafetyCheck)
	assert.False(t, rules.Commands[CommandStop].RequiresSafetyCheck)
	// 显式设置优先
	assert.True(t, rules.Commands[CommandDance].RequiresSafetyCheck)
	assert.False(t, rules.Commands[CommandFollow].RequiresSafetyCheck)
	assert.Equal(t, "run_fast", rules.Commands[CommandRun].Action)
}

func TestLoadRejectsBrokenDocument(t *testing.T) {
	_, err := Load(strings.NewReader("safety: [unclosed"), nil)
	assert.Error(t, err)
}

func TestStoreReloadPublishesNewSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("decision:\n  history_size: 6\n"), 0o600))

	store, err := NewStore(path, nil)
	require.NoError(t, err)
	first := store.Current()
	assert.Equal(t, 6, first.CommandHistorySize)

	require.NoError(t, os.WriteFile(path, []byte("decision:\n  history_size: 8\n"), 0o600))
	require.NoError(t, store.Reload())

	assert.Equal(t, 8, store.Current().CommandHistorySize)
	assert.Equal(t, 6, first.CommandHistorySize, "published snapshot must not change")
}

func TestStoreMissingFileUsesDefaults(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.NoError(t, err)
	assert.Equal(t, Default().CommandHistorySize, store.Current().CommandHistorySize)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().WriteYAML(&buf))

	loaded, err := Load(&buf, nil)
	require.NoError(t, err)

	want := Default()
	assert.Equal(t, want.Commands, loaded.Commands)
	assert.Equal(t, want.Emotions, loaded.Emotions)
	assert.Equal(t, want.Vocabulary, loaded.Vocabulary)
	assert.Equal(t, want.Safety, loaded.Safety)
	assert.Equal(t, want.FullVocabulary(), loaded.FullVocabulary())
	assert.Equal(t, want.DefaultEmotion, loaded.DefaultEmotion)
	assert.Equal(t, want.PitchRange, loaded.PitchRange)
	assert.Equal(t, want.CommandHistorySize, loaded.CommandHistorySize)
}
