package lexicon

import (
	"fmt"
	"strings"
)

// CommandID 标识一条受支持的肢体指令。
type CommandID uint8

const (
	CommandCome CommandID = iota
	CommandTurn
	CommandLeft
	CommandRight
	CommandRun
	CommandStop
	CommandFollow
	CommandBack
	CommandForward
	CommandDance

	// CommandCount 是指令总数，用作表长度。
	CommandCount
)

var commandNames = [CommandCount]string{
	CommandCome:    "come",
	CommandTurn:    "turn",
	CommandLeft:    "left",
	CommandRight:   "right",
	CommandRun:     "run",
	CommandStop:    "stop",
	CommandFollow:  "follow",
	CommandBack:    "back",
	CommandForward: "forward",
	CommandDance:   "dance",
}

// AllCommands 按表顺序返回全部指令。候选指令的评估顺序与此一致。
func AllCommands() []CommandID {
	ids := make([]CommandID, 0, CommandCount)
	for id := CommandID(0); id < CommandCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Valid reports whether id names a known command.
func (id CommandID) Valid() bool { return id < CommandCount }

func (id CommandID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("command(%d)", uint8(id))
	}
	return commandNames[id]
}

func (id CommandID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("unknown command id %d", uint8(id))
	}
	return []byte(commandNames[id]), nil
}

func (id *CommandID) UnmarshalText(text []byte) error {
	parsed, ok := ParseCommand(string(text))
	if !ok {
		return fmt.Errorf("unknown command %q", string(text))
	}
	*id = parsed
	return nil
}

// ParseCommand resolves a command name. Matching is case-insensitive.
func ParseCommand(name string) (CommandID, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for id, n := range commandNames {
		if n == normalized {
			return CommandID(id), true
		}
	}
	return 0, false
}

// EmotionID 标识一种情绪，取值为封闭集合。
type EmotionID uint8

const (
	EmotionHappy EmotionID = iota
	EmotionSad
	EmotionAngry
	EmotionSurprised
	EmotionScared
	EmotionCalm
	EmotionExcited
	EmotionBored
	EmotionFriendly
	EmotionShy

	// EmotionCount 是情绪总数，用作表长度。
	EmotionCount
)

var emotionNames = [EmotionCount]string{
	EmotionHappy:     "happy",
	EmotionSad:       "sad",
	EmotionAngry:     "angry",
	EmotionSurprised: "surprised",
	EmotionScared:    "scared",
	EmotionCalm:      "calm",
	EmotionExcited:   "excited",
	EmotionBored:     "bored",
	EmotionFriendly:  "friendly",
	EmotionShy:       "shy",
}

var emotionLabels = [EmotionCount]string{
	EmotionHappy:     "高兴",
	EmotionSad:       "难过",
	EmotionAngry:     "愤怒",
	EmotionSurprised: "惊讶",
	EmotionScared:    "害怕",
	EmotionCalm:      "平静",
	EmotionExcited:   "兴奋",
	EmotionBored:     "无聊",
	EmotionFriendly:  "友善",
	EmotionShy:       "害羞",
}

// AllEmotions 按表顺序返回全部情绪。
func AllEmotions() []EmotionID {
	ids := make([]EmotionID, 0, EmotionCount)
	for id := EmotionID(0); id < EmotionCount; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Valid reports whether id names a known emotion.
func (id EmotionID) Valid() bool { return id < EmotionCount }

func (id EmotionID) String() string {
	if !id.Valid() {
		return fmt.Sprintf("emotion(%d)", uint8(id))
	}
	return emotionNames[id]
}

// Label 返回情绪的中文名称。
func (id EmotionID) Label() string {
	if !id.Valid() {
		return ""
	}
	return emotionLabels[id]
}

func (id EmotionID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("unknown emotion id %d", uint8(id))
	}
	return []byte(emotionNames[id]), nil
}

func (id *EmotionID) UnmarshalText(text []byte) error {
	parsed, ok := ParseEmotion(string(text))
	if !ok {
		return fmt.Errorf("unknown emotion %q", string(text))
	}
	*id = parsed
	return nil
}

// ParseEmotion 接受英文名或中文名。
func ParseEmotion(name string) (EmotionID, bool) {
	trimmed := strings.TrimSpace(name)
	normalized := strings.ToLower(trimmed)
	for id := range emotionNames {
		if emotionNames[id] == normalized || emotionLabels[id] == trimmed {
			return EmotionID(id), true
		}
	}
	// 原配置里愤怒也写作"生气"
	if trimmed == "生气" {
		return EmotionAngry, true
	}
	return 0, false
}

// Intent 是话语的意图类别。
type Intent string

const (
	IntentCommand  Intent = "command"
	IntentQuestion Intent = "question"
	IntentGreeting Intent = "greeting"
	IntentChat     Intent = "chat"
)

// IntentPriority 是意图得分相同时的优先顺序。
var IntentPriority = [...]Intent{IntentCommand, IntentQuestion, IntentGreeting, IntentChat}

// ParseIntent resolves an intent name.
func ParseIntent(name string) (Intent, bool) {
	switch Intent(strings.ToLower(strings.TrimSpace(name))) {
	case IntentCommand:
		return IntentCommand, true
	case IntentQuestion:
		return IntentQuestion, true
	case IntentGreeting:
		return IntentGreeting, true
	case IntentChat:
		return IntentChat, true
	default:
		return "", false
	}
}
