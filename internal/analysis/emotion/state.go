// Package emotion 根据语境给出情绪、语音参数与 TTS 音色，并维护会话内的情绪历史。
package emotion

import "github.com/zhouzirui/z-companion/backend/internal/model/lexicon"

// State 是会话级情绪状态。History 中的每一项都曾经作为 Current 返回过。
type State struct {
	Current lexicon.EmotionID   `json:"current"`
	History []lexicon.EmotionID `json:"history"`
}

func (s State) clone() State {
	return State{
		Current: s.Current,
		History: append([]lexicon.EmotionID(nil), s.History...),
	}
}
