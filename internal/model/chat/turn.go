package chat

import (
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
)

// Turn 记录一轮输入与决策，用于审计和调试。
type Turn struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Text      string          `json:"text"`
	Scene     *scene.Snapshot `json:"scene,omitempty"`
	Intent    string          `json:"intent"`
	Emotion   string          `json:"emotion"`
	Decision  string          `json:"decision"`
	Action    string          `json:"action,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Reply     string          `json:"reply,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}
