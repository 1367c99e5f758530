package session

import (
	"github.com/zhouzirui/z-companion/backend/internal/analysis/pipeline"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
)

// NewTurn 把一轮处理结果整理成轮次记录。
func NewTurn(sessionID, text string, snap *scene.Snapshot, out pipeline.Outcome, reply string) chat.Turn {
	turn := chat.Turn{
		SessionID: sessionID,
		Text:      text,
		Scene:     snap,
		Emotion:   out.Emotion.Emotion.String(),
		Decision:  string(out.Decision.Kind),
		Reply:     reply,
	}
	if out.Context != nil {
		turn.Intent = string(out.Context.Intent)
	}
	switch {
	case out.Decision.Executable != nil:
		turn.Action = out.Decision.Executable.Action
	case out.Decision.Rejected != nil:
		turn.Reason = out.Decision.Rejected.Reason
	}
	return turn
}
