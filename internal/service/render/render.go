// Package render 把决策转换为发给用户的回复文本。它只读取流水线结果，不会反过来影响决策。
package render

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-companion/backend/internal/analysis/pipeline"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/model/persona"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
)

const historyLimit = 10

// 没有模型或模型失败时的兜底回复。
var cannedReplies = map[lexicon.Intent][]string{
	lexicon.IntentGreeting: {"你好", "你好呀", "嗨,很高兴见到你"},
	lexicon.IntentQuestion: {"这个问题我想一想", "嗯,我不太确定呢", "让我想想看"},
	lexicon.IntentChat:     {"嗯嗯", "好的,我在听", "是这样啊"},
}

// Service 生成回复。chain 为空时只使用模板与兜底回复。
type Service struct {
	chain  compose.Runnable[map[string]any, *schema.Message]
	logger logrus.FieldLogger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService 用聊天模型构建 eino 链。chatModel 为 nil 时回复全部来自模板。
func NewService(ctx context.Context, chatModel model.BaseChatModel, rng *rand.Rand, logger logrus.FieldLogger) (*Service, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = applog.Discard()
	}
	s := &Service{rng: rng, logger: logger.WithField("component", "render")}
	if chatModel == nil {
		return s, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}
	s.chain = runnable
	return s, nil
}

// LLMEnabled reports whether conversational replies go through the model.
func (s *Service) LLMEnabled() bool {
	return s.chain != nil
}

// Request 是生成一条回复所需的全部输入。
type Request struct {
	Persona persona.Persona
	Text    string
	Outcome pipeline.Outcome
	History []chat.Turn
}

// Reply 返回回复文本。可执行决策使用回复模板，拒绝使用拒绝措辞，
// 对话类决策交给模型，模型不可用或出错时退回兜底回复。
func (s *Service) Reply(ctx context.Context, req Request) string {
	d := req.Outcome.Decision
	switch {
	case d.Executable != nil:
		if d.Executable.ResponseTemplate != "" {
			return d.Executable.ResponseTemplate
		}
		return "好的"
	case d.Rejected != nil:
		return d.Rejected.Message
	}

	intent := lexicon.IntentChat
	if d.Conversational != nil {
		intent = d.Conversational.Intent
	}
	if s.chain == nil {
		return s.canned(intent)
	}

	resp, err := s.chain.Invoke(ctx, s.buildChainInput(req))
	if err != nil {
		s.logger.WithError(err).Warn("reply chain failed, using canned reply")
		return s.canned(intent)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return s.canned(intent)
	}
	s.logger.WithField("length", len(content)).Debug("generated reply")
	return content
}

func (s *Service) canned(intent lexicon.Intent) string {
	replies, ok := cannedReplies[intent]
	if !ok {
		replies = cannedReplies[lexicon.IntentChat]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return replies[s.rng.IntN(len(replies))]
}

func (s *Service) buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system":  buildSystemPrompt(req.Persona, req.Outcome),
		"history": buildHistoryMessages(req.History),
		"query":   req.Text,
	}
}

// buildSystemPrompt 包含角色设定、当前情绪与词汇约束。
func buildSystemPrompt(p persona.Persona, out pipeline.Outcome) string {
	var builder strings.Builder
	if p.Name != "" {
		builder.WriteString(fmt.Sprintf("你是%s，%s。性格：%s。\n", p.Name, p.Title, p.Tone))
		if p.PromptHint != "" {
			builder.WriteString(p.PromptHint)
			builder.WriteString("\n")
		}
	}

	builder.WriteString("\n你当前的情绪：")
	if desc := describeEmotion(out.Emotion.Voice.Label); desc != "" {
		builder.WriteString(desc)
	} else {
		builder.WriteString(fmt.Sprintf("情绪标签=%s", out.Emotion.Label))
	}
	builder.WriteString(fmt.Sprintf("，强度约 %.1f。", out.Emotion.Voice.Scale))

	if vocab := out.Decision.Vocabulary(); len(vocab) > 0 {
		builder.WriteString("\n回复时尽量只使用以下词汇：")
		builder.WriteString(strings.Join(vocab, "、"))
	}
	builder.WriteString("\n回复控制在一两句话以内，不要承诺执行任何动作。")
	return builder.String()
}

// buildHistoryMessages 取最近的若干轮作为上下文。
func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}
	start := 0
	if len(turns) > historyLimit {
		start = len(turns) - historyLimit
	}

	history := make([]*schema.Message, 0, 2*(len(turns)-start))
	for _, turn := range turns[start:] {
		history = append(history, schema.UserMessage(turn.Text))
		if turn.Reply != "" {
			history = append(history, schema.AssistantMessage(turn.Reply, nil))
		}
	}
	return history
}

func describeEmotion(label emotion.Label) string {
	switch label {
	case emotion.Happy:
		return "心情愉快，语气轻快"
	case emotion.Sad:
		return "有些低落，语气放轻放慢"
	case emotion.Angry:
		return "有些烦躁，但要保持克制和礼貌"
	case emotion.Excited:
		return "兴奋、充满期待，可以热情一些"
	case emotion.Tender:
		return "亲近、友好，语气柔和"
	case emotion.Comfort:
		return "有些不安，需要先让对方安心"
	case emotion.Neutral:
		return "平静，语气清晰自然"
	default:
		return ""
	}
}
