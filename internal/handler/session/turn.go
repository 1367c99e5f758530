package session

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/contextual"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/decision"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/emotion"
	speechmodel "github.com/zhouzirui/z-companion/backend/internal/model/speech"
	"github.com/zhouzirui/z-companion/backend/internal/service/render"
	sessionService "github.com/zhouzirui/z-companion/backend/internal/service/session"
	"github.com/zhouzirui/z-companion/backend/internal/service/speech"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
)

// TurnResult 是一轮交互返回给客户端的内容。
type TurnResult struct {
	TurnID   string                      `json:"turnId"`
	Context  *contextual.AnalysisContext `json:"context"`
	Emotion  emotion.Result              `json:"emotion"`
	Decision decision.Decision           `json:"decision"`
	Reply    string                      `json:"reply"`
	Audio    *speechmodel.Audio          `json:"audio,omitempty"`
	// AudioError 非空表示请求了语音但合成失败，文本回复不受影响。
	AudioError string `json:"audioError,omitempty"`
}

// TurnRunner 串起会话处理、回复生成与轮次记录，HTTP 与 WebSocket 共用。
type TurnRunner struct {
	sessions *sessionService.Service
	render   *render.Service
	speech   speech.Synthesizer
	logger   logrus.FieldLogger
}

// NewTurnRunner 创建 TurnRunner，synth 为 nil 时不合成语音。
func NewTurnRunner(sessions *sessionService.Service, renderSvc *render.Service, synth speech.Synthesizer, logger logrus.FieldLogger) *TurnRunner {
	if logger == nil {
		logger = applog.Discard()
	}
	return &TurnRunner{sessions: sessions, render: renderSvc, speech: synth, logger: logger}
}

// Run 处理一轮输入。回复生成与语音合成都在会话锁之外进行。
func (tr *TurnRunner) Run(ctx context.Context, sessionID string, req TurnRequest) (TurnResult, error) {
	out, err := tr.sessions.Process(ctx, sessionID, req.Text, req.Scene)
	if err != nil {
		return TurnResult{}, err
	}

	p, err := tr.sessions.Persona(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}
	history, err := tr.sessions.LoadTranscript(ctx, sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	reply := tr.render.Reply(ctx, render.Request{
		Persona: p,
		Text:    req.Text,
		Outcome: out,
		History: history,
	})

	turn, err := tr.sessions.SaveTurn(ctx, sessionService.NewTurn(sessionID, req.Text, req.Scene, out, reply))
	if err != nil {
		return TurnResult{}, fmt.Errorf("save turn: %w", err)
	}
	log := tr.logger.WithFields(logrus.Fields{
		"session":  sessionID,
		"turn":     turn.ID,
		"decision": turn.Decision,
	})
	log.Debug("turn completed")

	result := TurnResult{
		TurnID:   turn.ID,
		Context:  out.Context,
		Emotion:  out.Emotion,
		Decision: out.Decision,
		Reply:    reply,
	}

	if req.Speak {
		if tr.speech == nil {
			result.AudioError = "speech synthesis is not configured"
			return result, nil
		}
		audio, err := tr.speech.Synthesize(ctx, speech.RequestFor(sessionID, reply, p.Speaker, out.Emotion))
		if err != nil {
			log.WithError(err).Warn("speech synthesis failed")
			result.AudioError = err.Error()
			return result, nil
		}
		result.Audio = &audio
	}
	return result, nil
}
