package lexicon

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type fileRuleset struct {
	Commands    map[string]fileCommand `yaml:"commands"`
	Emotions    map[string]fileEmotion `yaml:"emotions"`
	Vocabulary  fileVocabulary         `yaml:"vocabulary"`
	Responses   map[string][]string    `yaml:"responses"`
	Transitions map[string][]string    `yaml:"transitions"`
	Tones       map[string][]string    `yaml:"tones"`
	Safety      fileSafety             `yaml:"safety"`
	Emotion     fileEmotionSettings    `yaml:"emotion"`
	Decision    fileDecisionSettings   `yaml:"decision"`
}

// WriteYAML 以规则文件格式输出快照，输出结果可以被 Load 重新读取。
func (r *Ruleset) WriteYAML(w io.Writer) error {
	doc := fileRuleset{
		Commands:    make(map[string]fileCommand, CommandCount),
		Emotions:    make(map[string]fileEmotion, EmotionCount),
		Vocabulary:  fileVocabulary(r.Vocabulary),
		Responses:   make(map[string][]string, len(r.Responses)),
		Transitions: make(map[string][]string, len(r.Transitions)),
		Tones:       make(map[string][]string, len(r.ToneWords)),
		Safety: fileSafety{
			MinObstacleDistance: &r.Safety.MinObstacleDistance,
			DangerKeywords:      r.Safety.DangerKeywords,
			RestrictedAreas:     r.Safety.RestrictedAreas,
			MaxSpeed:            &r.Safety.MaxSpeed,
			RequiredChecks:      r.Safety.RequiredChecks,
		},
		Emotion: fileEmotionSettings{
			Default:          r.DefaultEmotion.String(),
			HistorySize:      r.EmotionHistorySize,
			SpeechSpeedRange: []float64{r.SpeechSpeedRange.Min, r.SpeechSpeedRange.Max},
			VolumeRange:      []float64{r.VolumeRange.Min, r.VolumeRange.Max},
			PitchRange:       []float64{r.PitchRange.Min, r.PitchRange.Max},
		},
		Decision: fileDecisionSettings{HistorySize: r.CommandHistorySize},
	}
	for _, id := range AllCommands() {
		doc.Commands[id.String()] = toFileCommand(r.Commands[id])
	}
	for _, id := range AllEmotions() {
		doc.Emotions[id.String()] = fileEmotion(r.Emotions[id])
	}
	for intent, words := range r.Responses {
		doc.Responses[string(intent)] = words
	}
	for from, targets := range r.Transitions {
		names := make([]string, 0, len(targets))
		for _, to := range targets {
			names = append(names, to.String())
		}
		doc.Transitions[from.String()] = names
	}
	for tone, words := range r.ToneWords {
		doc.Tones[string(tone)] = words
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	return enc.Close()
}
