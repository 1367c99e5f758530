package lexicon

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Params 是语音合成的三个倍率参数。
type Params struct {
	SpeechSpeed float64 `json:"speechSpeed" yaml:"speech_speed"`
	Volume      float64 `json:"volume" yaml:"volume"`
	Pitch       float64 `json:"pitch" yaml:"pitch"`
}

// NeutralParams 是平静状态下的参数。
var NeutralParams = Params{SpeechSpeed: 1, Volume: 1, Pitch: 1}

// Range 是闭区间 [Min, Max]。
type Range struct {
	Min float64
	Max float64
}

// Clamp 将 v 限制在区间内。
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

func (r Range) valid() bool {
	return positiveFinite(r.Min) && positiveFinite(r.Max) && r.Min <= r.Max
}

// positiveFinite 拒绝 NaN 与 Inf：阈值与 NaN 比较恒为 false，会让安全闸门失效。
func positiveFinite(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// CommandProfile 描述一条指令的动作与触发方式。
type CommandProfile struct {
	Action              string
	Display             string
	RequiresSafetyCheck bool
	Triggers            []string
	Templates           []string
}

// EmotionProfile 描述一种情绪的基础语音参数与触发词。
type EmotionProfile struct {
	Expression string
	Params     Params
	Triggers   []string
}

// Vocabulary 是核心词汇库，按类别分组。
type Vocabulary struct {
	Objects    []string `json:"objects" yaml:"objects"`
	Questions  []string `json:"questions" yaml:"questions"`
	Greetings  []string `json:"greetings" yaml:"greetings"`
	Attitudes  []string `json:"attitudes" yaml:"attitudes"`
	Adjectives []string `json:"adjectives" yaml:"adjectives"`
}

func (v Vocabulary) all() []string {
	words := make([]string, 0, len(v.Objects)+len(v.Questions)+len(v.Greetings)+len(v.Attitudes)+len(v.Adjectives))
	words = append(words, v.Objects...)
	words = append(words, v.Questions...)
	words = append(words, v.Greetings...)
	words = append(words, v.Attitudes...)
	words = append(words, v.Adjectives...)
	return words
}

// Tone 是语气类别。
type Tone string

const (
	ToneImperative    Tone = "imperative"
	ToneInterrogative Tone = "interrogative"
	ToneExclamatory   Tone = "exclamatory"
	ToneEmphatic      Tone = "emphatic"
	ToneHedging       Tone = "hedging"
)

// AllTones 是固定的语气类别顺序。
var AllTones = [...]Tone{ToneImperative, ToneInterrogative, ToneExclamatory, ToneEmphatic, ToneHedging}

// Safety check names accepted in SafetyConfig.RequiredChecks.
const (
	CheckDistance  = "distance"
	CheckSpeed     = "speed"
	CheckObstacles = "obstacles"
	CheckArea      = "area"
)

// SafetyConfig 是安全闸门的阈值配置。
type SafetyConfig struct {
	MinObstacleDistance float64
	DangerKeywords      []string
	RestrictedAreas     []string
	MaxSpeed            float64
	RequiredChecks      []string
}

// Ruleset 是一份不可变的规则快照。构造完成后不得修改，重新加载时整体替换。
type Ruleset struct {
	Commands    [CommandCount]CommandProfile
	Emotions    [EmotionCount]EmotionProfile
	Vocabulary  Vocabulary
	Responses   map[Intent][]string
	Transitions map[EmotionID][]EmotionID
	Safety      SafetyConfig
	ToneWords   map[Tone][]string

	DefaultEmotion     EmotionID
	SpeechSpeedRange   Range
	VolumeRange        Range
	PitchRange         Range
	EmotionHistorySize int
	CommandHistorySize int

	// 以下字段由 finalize 生成
	vocabIndex      map[string]struct{}
	fullVocabulary  []string
	restrictedIndex map[string]struct{}
}

// Command 返回指令配置；未知指令返回零值与 false。
func (r *Ruleset) Command(id CommandID) (CommandProfile, bool) {
	if !id.Valid() {
		return CommandProfile{}, false
	}
	return r.Commands[id], true
}

// Emotion 返回情绪配置；未知情绪返回零值与 false。
func (r *Ruleset) Emotion(id EmotionID) (EmotionProfile, bool) {
	if !id.Valid() {
		return EmotionProfile{}, false
	}
	return r.Emotions[id], true
}

// IsVocabulary reports whether word belongs to the core vocabulary.
func (r *Ruleset) IsVocabulary(word string) bool {
	_, ok := r.vocabIndex[word]
	return ok
}

// FullVocabulary 返回排序后的完整词汇表副本。
func (r *Ruleset) FullVocabulary() []string {
	return append([]string(nil), r.fullVocabulary...)
}

// ResponseVocabulary 返回某类意图的回复词汇；未配置时退回完整词汇表。
func (r *Ruleset) ResponseVocabulary(intent Intent) []string {
	if words, ok := r.Responses[intent]; ok && len(words) > 0 {
		return append([]string(nil), words...)
	}
	return r.FullVocabulary()
}

// IsRestrictedArea reports whether area is configured as restricted.
func (r *Ruleset) IsRestrictedArea(area string) bool {
	if area == "" {
		return false
	}
	_, ok := r.restrictedIndex[area]
	return ok
}

// TransitionAllowed 查询情绪转换图。该图仅作参考，不参与情绪更新。
func (r *Ruleset) TransitionAllowed(from, to EmotionID) bool {
	if from == to {
		return true
	}
	for _, next := range r.Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MatchCommands 返回文本中出现了触发词的指令，按表顺序。
func (r *Ruleset) MatchCommands(text string) []CommandID {
	var matched []CommandID
	for _, id := range AllCommands() {
		if containsAny(text, r.Commands[id].Triggers) {
			matched = append(matched, id)
		}
	}
	return matched
}

// MatchEmotions 返回文本中出现了触发词的情绪，按表顺序。
func (r *Ruleset) MatchEmotions(text string) []EmotionID {
	var matched []EmotionID
	for _, id := range AllEmotions() {
		if containsAny(text, r.Emotions[id].Triggers) {
			matched = append(matched, id)
		}
	}
	return matched
}

// Words 返回分词器需要认识的全部词条：词汇库、指令与情绪触发词、危险词。
func (r *Ruleset) Words() []string {
	seen := make(map[string]struct{})
	var words []string
	add := func(list []string) {
		for _, w := range list {
			if w == "" {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			words = append(words, w)
		}
	}
	add(r.Vocabulary.all())
	for _, c := range r.Commands {
		add(c.Triggers)
	}
	for _, e := range r.Emotions {
		add(e.Triggers)
	}
	add(r.Safety.DangerKeywords)
	for _, tone := range AllTones {
		add(r.ToneWords[tone])
	}
	return words
}

// Validate 检查数值范围与容量配置。
func (r *Ruleset) Validate() error {
	var errs []error
	if !r.SpeechSpeedRange.valid() {
		errs = append(errs, fmt.Errorf("invalid speech_speed_range %v", r.SpeechSpeedRange))
	}
	if !r.VolumeRange.valid() {
		errs = append(errs, fmt.Errorf("invalid volume_range %v", r.VolumeRange))
	}
	if !r.PitchRange.valid() {
		errs = append(errs, fmt.Errorf("invalid pitch_range %v", r.PitchRange))
	}
	if r.EmotionHistorySize <= 0 {
		errs = append(errs, fmt.Errorf("emotion_history_size must be positive, got %d", r.EmotionHistorySize))
	}
	if r.CommandHistorySize <= 0 {
		errs = append(errs, fmt.Errorf("max_command_history_size must be positive, got %d", r.CommandHistorySize))
	}
	if !positiveFinite(r.Safety.MinObstacleDistance) {
		errs = append(errs, fmt.Errorf("min_obstacle_distance must be positive and finite, got %v", r.Safety.MinObstacleDistance))
	}
	if !positiveFinite(r.Safety.MaxSpeed) {
		errs = append(errs, fmt.Errorf("max_speed must be positive and finite, got %v", r.Safety.MaxSpeed))
	}
	if !r.DefaultEmotion.Valid() {
		errs = append(errs, fmt.Errorf("unknown default emotion %d", r.DefaultEmotion))
	}
	for _, check := range r.Safety.RequiredChecks {
		switch check {
		case CheckDistance, CheckSpeed, CheckObstacles, CheckArea:
		default:
			errs = append(errs, fmt.Errorf("unknown safety check %q", check))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrRulesetInvalid, errors.Join(errs...))
	}
	return nil
}

// ErrRulesetInvalid 表示规则快照未通过校验。
var ErrRulesetInvalid = errors.New("ruleset invalid")

func (r *Ruleset) finalize() *Ruleset {
	r.vocabIndex = make(map[string]struct{})
	for _, w := range r.Vocabulary.all() {
		r.vocabIndex[w] = struct{}{}
	}
	r.fullVocabulary = make([]string, 0, len(r.vocabIndex))
	for w := range r.vocabIndex {
		r.fullVocabulary = append(r.fullVocabulary, w)
	}
	sort.Strings(r.fullVocabulary)

	r.restrictedIndex = make(map[string]struct{}, len(r.Safety.RestrictedAreas))
	for _, area := range r.Safety.RestrictedAreas {
		r.restrictedIndex[area] = struct{}{}
	}
	return r
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(text, p) {
			return true
		}
	}
	return false
}
