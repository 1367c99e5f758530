package decision

import "github.com/zhouzirui/z-companion/backend/internal/model/lexicon"

// CommandHistory 是定长的指令历史，满了以后丢弃最早的记录。
type CommandHistory struct {
	items    []lexicon.CommandID
	capacity int
}

// NewCommandHistory 创建容量为 capacity 的历史，capacity 至少为 1。
func NewCommandHistory(capacity int) *CommandHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandHistory{capacity: capacity}
}

// Push 追加一条指令。
func (h *CommandHistory) Push(id lexicon.CommandID) {
	h.items = append(h.items, id)
	if len(h.items) > h.capacity {
		h.items = append([]lexicon.CommandID(nil), h.items[len(h.items)-h.capacity:]...)
	}
}

// CountRecent 统计最近 window 条记录中 id 出现的次数。
func (h *CommandHistory) CountRecent(id lexicon.CommandID, window int) int {
	start := len(h.items) - window
	if start < 0 {
		start = 0
	}
	var n int
	for _, item := range h.items[start:] {
		if item == id {
			n++
		}
	}
	return n
}

func (h *CommandHistory) Len() int { return len(h.items) }

// Items 返回历史的副本，最早的在前。
func (h *CommandHistory) Items() []lexicon.CommandID {
	return append([]lexicon.CommandID(nil), h.items...)
}
