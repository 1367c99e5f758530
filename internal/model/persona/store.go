package persona

// Store 提供角色查询。
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// MemoryStore 用内存切片实现 Store。
type MemoryStore struct {
	items []Persona
}

// NewMemoryStore 返回预置了给定角色的 MemoryStore。
func NewMemoryStore(items []Persona) *MemoryStore {
	return &MemoryStore{items: append([]Persona(nil), items...)}
}

func (s *MemoryStore) List() []Persona {
	return append([]Persona(nil), s.items...)
}

// FindByID 按 ID 查找角色，id 为空时返回默认角色。
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	if id == "" {
		id = DefaultID
	}
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Persona{}, false
}
