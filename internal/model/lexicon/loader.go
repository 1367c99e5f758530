package lexicon

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// 规则文件的结构。每个顶层表独立解析：缺失的表保留内置值，格式错误的表置空。
// requires_safety_check 省略时沿用内置指令的设置，不会默认关闭安全检查。
type fileCommand struct {
	Action              string   `yaml:"action"`
	Display             string   `yaml:"display"`
	RequiresSafetyCheck *bool    `yaml:"requires_safety_check"`
	Triggers            []string `yaml:"triggers"`
	Templates           []string `yaml:"templates"`
}

func (c fileCommand) profile(builtin CommandProfile) CommandProfile {
	requires := builtin.RequiresSafetyCheck
	if c.RequiresSafetyCheck != nil {
		requires = *c.RequiresSafetyCheck
	}
	return CommandProfile{
		Action:              c.Action,
		Display:             c.Display,
		RequiresSafetyCheck: requires,
		Triggers:            c.Triggers,
		Templates:           c.Templates,
	}
}

func toFileCommand(p CommandProfile) fileCommand {
	requires := p.RequiresSafetyCheck
	return fileCommand{
		Action:              p.Action,
		Display:             p.Display,
		RequiresSafetyCheck: &requires,
		Triggers:            p.Triggers,
		Templates:           p.Templates,
	}
}

type fileEmotion struct {
	Expression string   `yaml:"expression"`
	Params     Params   `yaml:"params"`
	Triggers   []string `yaml:"triggers"`
}

type fileVocabulary struct {
	Objects    []string `yaml:"objects"`
	Questions  []string `yaml:"questions"`
	Greetings  []string `yaml:"greetings"`
	Attitudes  []string `yaml:"attitudes"`
	Adjectives []string `yaml:"adjectives"`
}

type fileSafety struct {
	MinObstacleDistance *float64 `yaml:"min_obstacle_distance"`
	DangerKeywords      []string `yaml:"danger_keywords"`
	RestrictedAreas     []string `yaml:"restricted_areas"`
	MaxSpeed            *float64 `yaml:"max_speed"`
	RequiredChecks      []string `yaml:"required_checks"`
}

type fileEmotionSettings struct {
	Default          string    `yaml:"default"`
	HistorySize      int       `yaml:"history_size"`
	SpeechSpeedRange []float64 `yaml:"speech_speed_range"`
	VolumeRange      []float64 `yaml:"volume_range"`
	PitchRange       []float64 `yaml:"pitch_range"`
}

type fileDecisionSettings struct {
	HistorySize int `yaml:"history_size"`
}

// LoadFile 读取 YAML 规则文件并叠加到内置规则上。
func LoadFile(path string, logger logrus.FieldLogger) (*Ruleset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Load 从 reader 解析规则。只有整个文档无法解析时才返回错误；
// 单个表的问题只会让该表退回为空并记录告警。
func Load(r io.Reader, logger logrus.FieldLogger) (*Ruleset, error) {
	if logger == nil {
		logger = discard()
	}
	logger = logger.WithField("component", "lexicon")

	var doc map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Default(), nil
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	rules := Default()
	for key, node := range doc {
		node := node
		if err := applyTable(rules, key, &node); err != nil {
			logger.WithError(err).WithField("table", key).Warn("malformed rule table, using empty table")
			clearTable(rules, key)
		}
	}

	if err := rules.Validate(); err != nil {
		logger.WithError(err).Warn("rule values out of range, restoring defaults for numeric settings")
		restoreNumericDefaults(rules)
	}
	return rules.finalize(), nil
}

func applyTable(rules *Ruleset, key string, node *yaml.Node) error {
	switch key {
	case "commands":
		var raw map[string]fileCommand
		if err := node.Decode(&raw); err != nil {
			return err
		}
		builtin := defaultCommands()
		var table [CommandCount]CommandProfile
		for name, c := range raw {
			id, ok := ParseCommand(name)
			if !ok {
				return fmt.Errorf("unknown command %q", name)
			}
			table[id] = c.profile(builtin[id])
		}
		rules.Commands = table
	case "emotions":
		var raw map[string]fileEmotion
		if err := node.Decode(&raw); err != nil {
			return err
		}
		var table [EmotionCount]EmotionProfile
		for name, e := range raw {
			id, ok := ParseEmotion(name)
			if !ok {
				return fmt.Errorf("unknown emotion %q", name)
			}
			table[id] = EmotionProfile(e)
		}
		rules.Emotions = table
	case "vocabulary":
		var raw fileVocabulary
		if err := node.Decode(&raw); err != nil {
			return err
		}
		rules.Vocabulary = Vocabulary(raw)
	case "responses":
		var raw map[string][]string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		responses := make(map[Intent][]string, len(raw))
		for name, words := range raw {
			intent, ok := ParseIntent(name)
			if !ok {
				return fmt.Errorf("unknown intent %q", name)
			}
			responses[intent] = words
		}
		rules.Responses = responses
	case "transitions":
		var raw map[string][]string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		transitions := make(map[EmotionID][]EmotionID, len(raw))
		for from, targets := range raw {
			fromID, ok := ParseEmotion(from)
			if !ok {
				return fmt.Errorf("unknown emotion %q", from)
			}
			for _, to := range targets {
				toID, ok := ParseEmotion(to)
				if !ok {
					return fmt.Errorf("unknown emotion %q", to)
				}
				transitions[fromID] = append(transitions[fromID], toID)
			}
		}
		rules.Transitions = transitions
	case "tones":
		var raw map[string][]string
		if err := node.Decode(&raw); err != nil {
			return err
		}
		tones := make(map[Tone][]string, len(raw))
		for name, words := range raw {
			tone, ok := parseTone(name)
			if !ok {
				return fmt.Errorf("unknown tone %q", name)
			}
			tones[tone] = words
		}
		rules.ToneWords = tones
	case "safety":
		var raw fileSafety
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.MinObstacleDistance != nil {
			rules.Safety.MinObstacleDistance = *raw.MinObstacleDistance
		}
		if raw.MaxSpeed != nil {
			rules.Safety.MaxSpeed = *raw.MaxSpeed
		}
		if raw.DangerKeywords != nil {
			rules.Safety.DangerKeywords = raw.DangerKeywords
		}
		if raw.RestrictedAreas != nil {
			rules.Safety.RestrictedAreas = raw.RestrictedAreas
		}
		if raw.RequiredChecks != nil {
			rules.Safety.RequiredChecks = raw.RequiredChecks
		}
	case "emotion":
		var raw fileEmotionSettings
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.Default != "" {
			id, ok := ParseEmotion(raw.Default)
			if !ok {
				return fmt.Errorf("unknown default emotion %q", raw.Default)
			}
			rules.DefaultEmotion = id
		}
		if raw.HistorySize != 0 {
			rules.EmotionHistorySize = raw.HistorySize
		}
		for _, pair := range []struct {
			src []float64
			dst *Range
		}{
			{raw.SpeechSpeedRange, &rules.SpeechSpeedRange},
			{raw.VolumeRange, &rules.VolumeRange},
			{raw.PitchRange, &rules.PitchRange},
		} {
			if pair.src == nil {
				continue
			}
			if len(pair.src) != 2 {
				return fmt.Errorf("range must have two values, got %d", len(pair.src))
			}
			*pair.dst = Range{Min: pair.src[0], Max: pair.src[1]}
		}
	case "decision":
		var raw fileDecisionSettings
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.HistorySize != 0 {
			rules.CommandHistorySize = raw.HistorySize
		}
	default:
		return fmt.Errorf("unknown table %q", key)
	}
	return nil
}

func clearTable(rules *Ruleset, key string) {
	switch key {
	case "commands":
		rules.Commands = [CommandCount]CommandProfile{}
	case "emotions":
		rules.Emotions = [EmotionCount]EmotionProfile{}
	case "vocabulary":
		rules.Vocabulary = Vocabulary{}
	case "responses":
		rules.Responses = nil
	case "transitions":
		rules.Transitions = nil
	case "tones":
		rules.ToneWords = nil
	case "safety":
		// 安全表为空时闸门仍保持关闭：距离与速度阈值沿用内置值
		defaults := defaultSafety()
		rules.Safety = SafetyConfig{
			MinObstacleDistance: defaults.MinObstacleDistance,
			MaxSpeed:            defaults.MaxSpeed,
		}
	}
}

func restoreNumericDefaults(rules *Ruleset) {
	d := Default()
	if !rules.SpeechSpeedRange.valid() {
		rules.SpeechSpeedRange = d.SpeechSpeedRange
	}
	if !rules.VolumeRange.valid() {
		rules.VolumeRange = d.VolumeRange
	}
	if !rules.PitchRange.valid() {
		rules.PitchRange = d.PitchRange
	}
	if rules.EmotionHistorySize <= 0 {
		rules.EmotionHistorySize = d.EmotionHistorySize
	}
	if rules.CommandHistorySize <= 0 {
		rules.CommandHistorySize = d.CommandHistorySize
	}
	if !positiveFinite(rules.Safety.MinObstacleDistance) {
		rules.Safety.MinObstacleDistance = d.Safety.MinObstacleDistance
	}
	if !positiveFinite(rules.Safety.MaxSpeed) {
		rules.Safety.MaxSpeed = d.Safety.MaxSpeed
	}
	checks := rules.Safety.RequiredChecks[:0:0]
	for _, check := range rules.Safety.RequiredChecks {
		switch check {
		case CheckDistance, CheckSpeed, CheckObstacles, CheckArea:
			checks = append(checks, check)
		}
	}
	rules.Safety.RequiredChecks = checks
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func parseTone(name string) (Tone, bool) {
	for _, tone := range AllTones {
		if string(tone) == name {
			return tone, true
		}
	}
	return "", false
}
