package segment

import (
	"fmt"
	"strings"

	"github.com/go-ego/gse"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
)

// 规则词条的词频，保证自定义词条在切分时优先于内置词典。
const customWordFreq = 100000

// GSE 使用 go-ego/gse 做分词与词性标注，并把规则库中的词条注册为自定义词。
type GSE struct {
	seg gse.Segmenter
}

// NewGSE 加载内置词典并注册规则词条。
func NewGSE(rules *lexicon.Ruleset, logger logrus.FieldLogger) (*GSE, error) {
	seg, err := gse.New()
	if err != nil {
		return nil, fmt.Errorf("load gse dictionary: %w", err)
	}
	dict := Dictionary(rules)
	for word, tag := range dict {
		seg.AddToken(word, customWordFreq, tag)
	}
	if logger != nil {
		logger.WithField("component", "segment").WithField("custom_words", len(dict)).Info("gse segmenter ready")
	}
	return &GSE{seg: seg}, nil
}

// Segment implements Tokenizer.
func (g *GSE) Segment(text string) []Token {
	parts := g.seg.Pos(text, false)
	tokens := make([]Token, 0, len(parts))
	for _, p := range parts {
		word := strings.TrimSpace(p.Text)
		if word == "" {
			continue
		}
		tokens = append(tokens, Token{Word: word, Tag: p.Pos})
	}
	return tokens
}

// New 优先使用 gse；词典加载失败时退回规则词典分词器。
func New(rules *lexicon.Ruleset, logger logrus.FieldLogger) Tokenizer {
	g, err := NewGSE(rules, logger)
	if err == nil {
		return g
	}
	if logger != nil {
		logger.WithField("component", "segment").WithError(err).Warn("falling back to lexicon segmenter")
	}
	return NewLexiconFor(rules)
}
