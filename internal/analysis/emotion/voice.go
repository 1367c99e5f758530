package emotion

import (
	"math"

	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
)

// Label 表示TTS可以接受的情绪标签。
type Label string

const (
	Neutral Label = "neutral"
	Happy   Label = "happy"
	Sad     Label = "sad"
	Angry   Label = "angry"
	Excited Label = "excited"
	Tender  Label = "tender"
	Comfort Label = "comfort"
)

// Voice 给出TTS情绪标签以及推荐情绪强度(1-5)。
type Voice struct {
	Label Label   `json:"label"`
	Scale float32 `json:"scale"`
}

var voiceLabels = [lexicon.EmotionCount]Label{
	lexicon.EmotionHappy:     Happy,
	lexicon.EmotionSad:       Sad,
	lexicon.EmotionAngry:     Angry,
	lexicon.EmotionSurprised: Excited,
	lexicon.EmotionScared:    Comfort,
	lexicon.EmotionCalm:      Neutral,
	lexicon.EmotionExcited:   Excited,
	lexicon.EmotionBored:     Neutral,
	lexicon.EmotionFriendly:  Tender,
	lexicon.EmotionShy:       Tender,
}

// VoiceFor 将情绪映射为TTS音色。强度以 2 为基础，随置信度提升。
func VoiceFor(id lexicon.EmotionID, confidence float64) Voice {
	if !id.Valid() {
		return Voice{Label: Neutral, Scale: 3}
	}
	label := voiceLabels[id]
	if label == Neutral {
		return Voice{Label: Neutral, Scale: 3}
	}

	scale := 2 + float32(confidence)*3
	if label == Excited {
		scale += 1
	}
	if label == Comfort || label == Tender {
		scale = float32(math.Min(3.5, float64(scale)))
	}

	if scale < 1 {
		scale = 1
	}
	if scale > 5 {
		scale = 5
	}
	return Voice{Label: label, Scale: scale}
}
