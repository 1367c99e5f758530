// Package contextual 实现语境分析：意图分类、语气识别与场景安全标记。
package contextual

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/segment"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
)

// ImpactSource 标识场景影响的来源字段。
type ImpactSource string

const (
	ImpactTemperature ImpactSource = "temperature"
	ImpactLighting    ImpactSource = "lighting"
	ImpactSafety      ImpactSource = "safety"
)

// 场景影响的类型。
const (
	ImpactDiscomfort = "discomfort"
	ImpactUnease     = "unease"
	ImpactAlert      = "alert"
	ImpactDanger     = "danger"
)

// Impact 是场景对情绪的一项影响，Degree 位于 [0,1]。
type Impact struct {
	Kind   string  `json:"kind"`
	Degree float64 `json:"degree"`
}

// AnalysisContext 是单次请求的语境分析结果，构造后不再修改。
type AnalysisContext struct {
	OriginalText     string                   `json:"originalText"`
	Tokens           []segment.Token          `json:"tokens"`
	Keywords         []string                 `json:"keywords"`
	Commands         []lexicon.CommandID      `json:"possibleCommands"`
	Emotions         []lexicon.EmotionID      `json:"possibleEmotions"`
	Intent           lexicon.Intent           `json:"intent"`
	IntentConfidence float64                  `json:"intentConfidence"`
	Tones            map[lexicon.Tone]float64 `json:"tones"`
	Scene            *scene.Snapshot          `json:"scene,omitempty"`
	HasObstacles     bool                     `json:"hasObstacles"`
	IsSafe           bool                     `json:"isSafe"`
	SceneImpact      map[ImpactSource]Impact  `json:"sceneImpact,omitempty"`
}

// HasKeyword reports whether word was extracted as a vocabulary keyword.
func (c *AnalysisContext) HasKeyword(word string) bool {
	return contains(c.Keywords, word)
}

// Temperature 返回场景温度；没有场景或无法解析时 ok 为 false。
func (c *AnalysisContext) Temperature() (float64, bool) {
	return c.Scene.TemperatureCelsius()
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
