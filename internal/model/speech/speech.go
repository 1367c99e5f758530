package speech

import (
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
)

// SynthesisRequest 是一次语音合成请求。Voice 与 Params 来自情绪分析。
type SynthesisRequest struct {
	SessionID string
	Text      string
	Speaker   string
	Voice     emotion.Voice
	Params    lexicon.Params
}

// Audio 是合成结果，Data 在 JSON 中以 base64 输出。
type Audio struct {
	Data       []byte    `json:"data"`
	Format     string    `json:"format"`
	Speaker    string    `json:"speaker"`
	Emotion    string    `json:"emotion,omitempty"`
	DurationMs int64     `json:"durationMs,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
