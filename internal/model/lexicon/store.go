package lexicon

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Store 持有当前生效的规则快照，可被所有会话共享。
// 重新加载时发布新的快照，已发布的快照永不修改。
type Store struct {
	current atomic.Pointer[Ruleset]
	path    string
	logger  logrus.FieldLogger
}

// NewStore 创建规则仓库。path 为空时使用内置规则。
func NewStore(path string, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = discard()
	}
	s := &Store{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore 包装一份既有快照，主要用于测试。
func NewStaticStore(rules *Ruleset) *Store {
	s := &Store{logger: discard()}
	s.current.Store(rules)
	return s
}

// Current 返回当前快照。
func (s *Store) Current() *Ruleset {
	return s.current.Load()
}

// Reload 重新读取规则文件并原子替换快照。读取失败时保留旧快照。
func (s *Store) Reload() error {
	if s.path == "" {
		s.current.Store(Default())
		return nil
	}
	rules, err := LoadFile(s.path, s.logger)
	if err != nil {
		if s.current.Load() == nil {
			// 首次加载失败时退回内置规则，保证流水线可用
			s.logger.WithError(err).WithField("path", s.path).Warn("rules file unavailable, using built-in rules")
			s.current.Store(Default())
			return nil
		}
		return err
	}
	s.current.Store(rules)
	s.logger.WithField("path", s.path).Info("rules loaded")
	return nil
}
