// Package segment 提供分词与词性标注。词性标签沿用 jieba 的记法。
package segment

import (
	"unicode"
	"unicode/utf8"

	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
)

// 常用词性标签。
const (
	TagVerb     = "v" // 动词
	TagParticle = "y" // 语气词
	TagNoun     = "n"
	TagGreeting = "l"
	TagPronoun  = "r"
	TagUnknown  = "x"
	TagEnglish  = "eng"
	TagNumeral  = "m"
)

// Token 是一个 (词, 词性) 对。
type Token struct {
	Word string `json:"word"`
	Tag  string `json:"tag"`
}

// Tokenizer 将文本切分为有序的词序列。实现必须是纯函数：同样的输入得到同样的输出。
type Tokenizer interface {
	Segment(text string) []Token
}

// TokenizerFunc adapts a function to Tokenizer.
type TokenizerFunc func(text string) []Token

func (f TokenizerFunc) Segment(text string) []Token { return f(text) }

// Dictionary 根据规则快照生成词典：指令触发词标为动词，疑问/感叹语气词标为语气词。
func Dictionary(rules *lexicon.Ruleset) map[string]string {
	dict := make(map[string]string)
	for _, w := range rules.Words() {
		dict[w] = TagNoun
	}
	for _, w := range rules.Vocabulary.Greetings {
		dict[w] = TagGreeting
	}
	for _, w := range rules.Vocabulary.Questions {
		dict[w] = TagPronoun
	}
	for _, c := range rules.Commands {
		for _, w := range c.Triggers {
			dict[w] = TagVerb
		}
	}
	for _, tone := range []lexicon.Tone{lexicon.ToneInterrogative, lexicon.ToneExclamatory} {
		for _, w := range rules.ToneWords[tone] {
			if utf8.RuneCountInString(w) == 1 {
				dict[w] = TagParticle
			}
		}
	}
	return dict
}

// Lexicon 是基于词典的正向最大匹配分词器。词典之外的汉字逐字切分，
// 连续的字母或数字合并为一个词。
type Lexicon struct {
	dict   map[string]string
	maxLen int
}

// NewLexicon 以 word->tag 词典构造分词器。
func NewLexicon(dict map[string]string) *Lexicon {
	l := &Lexicon{dict: make(map[string]string, len(dict)), maxLen: 1}
	for w, tag := range dict {
		if w == "" {
			continue
		}
		l.dict[w] = tag
		if n := utf8.RuneCountInString(w); n > l.maxLen {
			l.maxLen = n
		}
	}
	return l
}

// NewLexiconFor 使用规则快照构造分词器。
func NewLexiconFor(rules *lexicon.Ruleset) *Lexicon {
	return NewLexicon(Dictionary(rules))
}

// Segment implements Tokenizer.
func (l *Lexicon) Segment(text string) []Token {
	runes := []rune(text)
	tokens := make([]Token, 0, len(runes))
	for i := 0; i < len(runes); {
		r := runes[i]
		if unicode.IsSpace(r) {
			i++
			continue
		}
		if isASCIIWordRune(r) {
			j := i + 1
			for j < len(runes) && isASCIIWordRune(runes[j]) && unicode.IsDigit(runes[j]) == unicode.IsDigit(r) {
				j++
			}
			tag := TagEnglish
			if unicode.IsDigit(r) {
				tag = TagNumeral
			}
			tokens = append(tokens, Token{Word: string(runes[i:j]), Tag: tag})
			i = j
			continue
		}

		matched := false
		limit := l.maxLen
		if rest := len(runes) - i; rest < limit {
			limit = rest
		}
		for n := limit; n >= 1; n-- {
			word := string(runes[i : i+n])
			if tag, ok := l.dict[word]; ok {
				tokens = append(tokens, Token{Word: word, Tag: tag})
				i += n
				matched = true
				break
			}
		}
		if !matched {
			tokens = append(tokens, Token{Word: string(r), Tag: TagUnknown})
			i++
		}
	}
	return tokens
}

func isASCIIWordRune(r rune) bool {
	return r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
