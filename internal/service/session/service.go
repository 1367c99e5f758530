// Package session 管理会话：每个会话拥有独立的流水线状态与轮次记录。
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/pipeline"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/segment"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
)

// MaxTurns 是每个会话保留的轮次记录上限。
const MaxTurns = 50

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrEmptyText       = errors.New("text is required")
)

// RuleSource 提供当前生效的规则快照，lexicon.Store 满足该接口。
type RuleSource interface {
	Current() *lexicon.Ruleset
}

// TokenizerFactory 为规则快照构建分词器。
type TokenizerFactory func(rules *lexicon.Ruleset) segment.Tokenizer

// Options 是 Service 的依赖。除 Rules 外都可以缺省。
type Options struct {
	Rules     RuleSource
	Personas  persona.Store
	Store     Store
	Tokenizer TokenizerFactory
	// Rand 为每个新会话提供随机源，测试中用于固定种子。
	Rand   func() *rand.Rand
	Logger logrus.FieldLogger
}

// Service 管理会话生命周期。不同会话互不影响，同一会话的请求串行处理。
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	rules     RuleSource
	personas  persona.Store
	store     Store
	tokenizer *tokenizerCache
	newRand   func() *rand.Rand
	logger    logrus.FieldLogger
}

type entry struct {
	// mu 串行化同一会话的处理与快照保存。
	mu       sync.Mutex
	session  chat.Session
	pipeline *pipeline.Pipeline
	// closed 由 mu 保护；关闭后的条目不再处理输入，也不再写存储。
	closed bool

	turnsMu sync.RWMutex
	turns   []chat.Turn
}

// NewService 创建会话服务。
func NewService(opts Options) *Service {
	if opts.Rules == nil {
		opts.Rules = lexicon.NewStaticStore(lexicon.Default())
	}
	if opts.Personas == nil {
		opts.Personas = persona.NewMemoryStore(persona.Seed())
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = func(rules *lexicon.Ruleset) segment.Tokenizer {
			return segment.NewLexiconFor(rules)
		}
	}
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	return &Service{
		sessions:  make(map[string]*entry),
		rules:     opts.Rules,
		personas:  opts.Personas,
		store:     opts.Store,
		tokenizer: &tokenizerCache{build: opts.Tokenizer},
		newRand:   opts.Rand,
		logger:    opts.Logger.WithField("component", "session"),
	}
}

// CreateSession 创建会话并绑定角色，personaID 为空时使用默认角色。
// 会话在创建时固定当前的规则快照，之后的规则重载只影响新会话。
func (s *Service) CreateSession(ctx context.Context, personaID string) (chat.Session, error) {
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	now := time.Now().UTC()
	session := chat.Session{
		ID:        uuid.NewString(),
		PersonaID: p.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e := s.newEntry(session)

	if err := s.store.Save(ctx, Snapshot{Session: session, State: e.pipeline.State()}); err != nil {
		return chat.Session{}, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.sessions[session.ID] = e
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{"session": session.ID, "persona": p.ID}).Info("session created")
	return session, nil
}

// GetSession 返回会话信息。
func (s *Service) GetSession(ctx context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(ctx, sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return chat.Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// Process 对会话执行一轮分析与决策，并保存新的会话状态。
// 快照保存失败只记录日志，本轮结果仍然返回。
func (s *Service) Process(ctx context.Context, sessionID, text string, snap *scene.Snapshot) (pipeline.Outcome, error) {
	if text == "" {
		return pipeline.Outcome{}, ErrEmptyText
	}
	e, err := s.lookup(ctx, sessionID)
	if err != nil {
		return pipeline.Outcome{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return pipeline.Outcome{}, ErrSessionNotFound
	}

	out := e.pipeline.Process(text, snap)
	e.session.UpdatedAt = time.Now().UTC()

	if err := s.store.Save(ctx, Snapshot{Session: e.session, State: e.pipeline.State()}); err != nil {
		s.logger.WithError(err).WithField("session", sessionID).Warn("failed to persist session state")
	}

	s.logger.WithFields(logrus.Fields{
		"session":  sessionID,
		"intent":   out.Context.Intent,
		"emotion":  out.Emotion.Emotion.String(),
		"decision": out.Decision.Kind,
	}).Debug("turn processed")
	return out, nil
}

// State 返回会话当前的情绪与指令历史。
func (s *Service) State(ctx context.Context, sessionID string) (pipeline.State, error) {
	e, err := s.lookup(ctx, sessionID)
	if err != nil {
		return pipeline.State{}, err
	}
	return e.pipeline.State(), nil
}

// SaveTurn 追加一条轮次记录并返回带 ID 的副本，超过 MaxTurns 时丢弃最早的记录。
func (s *Service) SaveTurn(ctx context.Context, turn chat.Turn) (chat.Turn, error) {
	if turn.SessionID == "" {
		return chat.Turn{}, ErrSessionNotFound
	}
	e, err := s.lookup(ctx, turn.SessionID)
	if err != nil {
		return chat.Turn{}, err
	}

	turn.ID = uuid.NewString()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}

	e.turnsMu.Lock()
	defer e.turnsMu.Unlock()
	e.turns = append(e.turns, turn)
	if len(e.turns) > MaxTurns {
		e.turns = append([]chat.Turn(nil), e.turns[len(e.turns)-MaxTurns:]...)
	}
	return turn, nil
}

// LoadTranscript 返回会话的轮次记录副本。
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Turn, error) {
	e, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	e.turnsMu.RLock()
	defer e.turnsMu.RUnlock()
	copied := make([]chat.Turn, len(e.turns))
	copy(copied, e.turns)
	return copied, nil
}

// CloseSession 删除会话及其持久化状态。持有会话锁，正在进行的一轮
// 会先完成保存；排在其后的调用得到 ErrSessionNotFound。
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	e, err := s.lookup(ctx, sessionID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrSessionNotFound
	}

	// 与 lookup 的恢复路径互斥，避免刚删除的快照被重新加载
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session state: %w", err)
	}
	e.closed = true
	if s.sessions[sessionID] == e {
		delete(s.sessions, sessionID)
	}
	s.logger.WithField("session", sessionID).Info("session closed")
	return nil
}

// Persona 返回会话绑定的角色。
func (s *Service) Persona(ctx context.Context, sessionID string) (persona.Persona, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return persona.Persona{}, err
	}
	p, ok := s.personas.FindByID(session.PersonaID)
	if !ok {
		return persona.Persona{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, session.PersonaID)
	}
	return p, nil
}

// Rules 返回会话固定的规则快照。
func (s *Service) Rules(ctx context.Context, sessionID string) (*lexicon.Ruleset, error) {
	e, err := s.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.pipeline.Rules(), nil
}

// lookup 先查内存，再从存储中恢复会话。
func (s *Service) lookup(ctx context.Context, sessionID string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	// 恢复在写锁内完成，CloseSession 的删除不会与之交错
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing, nil
	}

	snap, err := s.store.Load(ctx, sessionID)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	restored := s.newEntry(snap.Session)
	restored.pipeline.Restore(snap.State)
	s.sessions[sessionID] = restored
	s.logger.WithField("session", sessionID).Info("session restored from store")
	return restored, nil
}

func (s *Service) newEntry(session chat.Session) *entry {
	rules := s.rules.Current()
	var rng *rand.Rand
	if s.newRand != nil {
		rng = s.newRand()
	}
	logger := s.logger.WithField("session", session.ID)
	return &entry{
		session:  session,
		pipeline: pipeline.New(rules, s.tokenizer.get(rules), rng, logger),
		turns:    make([]chat.Turn, 0, 16),
	}
}

// tokenizerCache 为同一份规则快照复用分词器，gse 词典加载较慢。
type tokenizerCache struct {
	mu    sync.Mutex
	build TokenizerFactory
	rules *lexicon.Ruleset
	tok   segment.Tokenizer
}

func (c *tokenizerCache) get(rules *lexicon.Ruleset) segment.Tokenizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok == nil || c.rules != rules {
		c.tok = c.build(rules)
		c.rules = rules
	}
	return c.tok
}
