package chat

import "time"

// Session 是一次匿名的交互会话，绑定一个陪伴角色。
type Session struct {
	ID        string    `json:"id"`
	PersonaID string    `json:"personaId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
