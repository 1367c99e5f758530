// Package speech 把回复文本按情绪参数合成为语音，使用火山引擎单向流式 TTS 协议。
package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/emotion"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	speechmodel "github.com/zhouzirui/z-companion/backend/internal/model/speech"
	applog "github.com/zhouzirui/z-companion/backend/pkg/log"
)

// DefaultEndpoint 是火山引擎单向流式合成接口。
const DefaultEndpoint = "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"

var (
	// ErrEmptyText 表示待合成文本为空。
	ErrEmptyText = errors.New("speech: text is empty")
	// ErrMissingCredentials 表示缺少 AppID 或 AccessToken。
	ErrMissingCredentials = errors.New("speech: missing app id or access token")
)

// Synthesizer 将文本合成为音频。
type Synthesizer interface {
	Synthesize(ctx context.Context, req speechmodel.SynthesisRequest) (speechmodel.Audio, error)
}

// Config 描述 TTS 客户端。
type Config struct {
	AppID       string
	AccessToken string
	Speaker     string
	Endpoint    string
	Format      string
	SampleRate  int
	Timeout     time.Duration
}

// Client 是火山引擎 TTS WebSocket 客户端，每次合成建立一条新连接。
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger logrus.FieldLogger
}

var _ Synthesizer = (*Client)(nil)

// NewClient 校验凭证并补齐默认值。
func NewClient(cfg Config, logger logrus.FieldLogger) (*Client, error) {
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if cfg.AppID == "" || cfg.AccessToken == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	// 服务端不支持 wav 流，统一退回 mp3
	if cfg.Format == "" || cfg.Format == "wav" {
		cfg.Format = "mp3"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Client{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.Timeout},
		logger: logger.WithField("component", "tts"),
	}, nil
}

// Synthesize 依次尝试候选音色与资源 ID，只有资源不匹配时才换下一个。
func (c *Client) Synthesize(ctx context.Context, req speechmodel.SynthesisRequest) (speechmodel.Audio, error) {
	if strings.TrimSpace(req.Text) == "" {
		return speechmodel.Audio{}, ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var lastMismatch error
	for _, speaker := range speakerCandidates(req.Speaker, c.cfg.Speaker) {
		for _, resourceID := range resourceCandidates(speaker) {
			audio, err := c.synthesizeWith(ctx, req, speaker, resourceID)
			if err == nil {
				return audio, nil
			}
			if !isResourceMismatch(err) {
				return speechmodel.Audio{}, err
			}
			c.logger.WithFields(logrus.Fields{
				"speaker":  speaker,
				"resource": resourceID,
			}).WithError(err).Warn("speaker resource mismatch, trying next candidate")
			lastMismatch = err
		}
	}
	if lastMismatch != nil {
		return speechmodel.Audio{}, lastMismatch
	}
	return speechmodel.Audio{}, fmt.Errorf("speech: no speaker configured")
}

type ttsRequest struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format       string  `json:"format"`
	SampleRate   int     `json:"sample_rate"`
	SpeechRate   int     `json:"speech_rate,omitempty"`
	LoudnessRate int     `json:"loudness_rate,omitempty"`
	Emotion      string  `json:"emotion,omitempty"`
	EmotionScale float32 `json:"emotion_scale,omitempty"`
}

type ttsAdditions struct {
	DisableMarkdownFilter bool `json:"disable_markdown_filter"`
	PostProcess           *struct {
		Pitch int `json:"pitch"`
	} `json:"post_process,omitempty"`
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

func (c *Client) synthesizeWith(ctx context.Context, req speechmodel.SynthesisRequest, speaker, resourceID string) (speechmodel.Audio, error) {
	connectID := uuid.NewString()
	h := http.Header{}
	h.Set("X-Api-App-Key", c.cfg.AppID)
	h.Set("X-Api-Access-Key", c.cfg.AccessToken)
	h.Set("X-Api-Resource-Id", resourceID)
	h.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.Endpoint, h)
	if err != nil {
		return speechmodel.Audio{}, fmt.Errorf("dial tts: %w", err)
	}
	defer conn.Close()
	if resp != nil {
		if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
			c.logger.WithField("logid", logID).Debug("tts connected")
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}
	// 上层取消时关闭连接以打断阻塞读
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	body, label := c.buildRequest(req, speaker)
	payload, err := json.Marshal(body)
	if err != nil {
		return speechmodel.Audio{}, fmt.Errorf("marshal tts request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, newClientRequest(payload).marshal()); err != nil {
		return speechmodel.Audio{}, fmt.Errorf("send tts request: %w", err)
	}

	audio := speechmodel.Audio{
		Format:    c.cfg.Format,
		Speaker:   speaker,
		Emotion:   label,
		RequestID: connectID,
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return speechmodel.Audio{}, ctx.Err()
			}
			return speechmodel.Audio{}, fmt.Errorf("read tts response: %w", err)
		}
		f, err := unmarshalFrame(data)
		if err != nil {
			return speechmodel.Audio{}, fmt.Errorf("decode tts frame: %w", err)
		}
		content, err := f.body()
		if err != nil {
			return speechmodel.Audio{}, fmt.Errorf("decompress tts frame: %w", err)
		}

		switch f.header.msgType {
		case errorMessage:
			return speechmodel.Audio{}, fmt.Errorf("tts error %d: %s", f.errorCode, content)

		case audioOnlyServerResponse:
			audio.Data = append(audio.Data, content...)

		case fullServerResponse:
			if f.hasEvent() && f.event == eventSessionFailed {
				return speechmodel.Audio{}, fmt.Errorf("tts session failed: %s", content)
			}
			var msg ttsServerMessage
			if len(content) > 0 {
				if err := json.Unmarshal(content, &msg); err != nil {
					c.logger.WithError(err).Debug("ignoring non-json tts payload")
				} else {
					if msg.Code != 0 && msg.Code != 3000 {
						return speechmodel.Audio{}, fmt.Errorf("tts api error %d: %s", msg.Code, msg.Message)
					}
					if msg.ReqID != "" {
						audio.RequestID = msg.ReqID
					}
					if ms, err := strconv.ParseInt(msg.Addition.Duration, 10, 64); err == nil {
						audio.DurationMs = ms
					}
					if msg.Data != "" {
						chunk, err := base64.StdEncoding.DecodeString(msg.Data)
						if err != nil {
							return speechmodel.Audio{}, fmt.Errorf("decode audio chunk: %w", err)
						}
						audio.Data = append(audio.Data, chunk...)
					}
				}
			}
			finished := (f.hasEvent() && f.event == eventSessionFinished) || f.isLast() || msg.Sequence < 0
			if finished {
				if len(audio.Data) == 0 {
					return speechmodel.Audio{}, fmt.Errorf("tts returned empty audio")
				}
				audio.CreatedAt = time.Now()
				return audio, nil
			}

		default:
			c.logger.WithField("type", f.header.msgType).Debug("unexpected tts message type")
		}
	}
}

// buildRequest 把情绪参数翻译为接口字段，返回实际使用的情绪标签。
func (c *Client) buildRequest(req speechmodel.SynthesisRequest, speaker string) (*ttsRequest, string) {
	body := &ttsRequest{}
	body.User.UID = req.SessionID
	if body.User.UID == "" {
		body.User.UID = uuid.NewString()
	}
	body.ReqParams.Speaker = speaker
	body.ReqParams.Text = req.Text
	body.ReqParams.AudioParams = ttsAudioParams{
		Format:       c.cfg.Format,
		SampleRate:   c.cfg.SampleRate,
		SpeechRate:   ratioToRate(req.Params.SpeechSpeed),
		LoudnessRate: ratioToRate(req.Params.Volume),
	}

	label, scale, ok := emotionParameters(speaker, req.Voice)
	if ok {
		body.ReqParams.AudioParams.Emotion = label
		body.ReqParams.AudioParams.EmotionScale = scale
	}

	additions := ttsAdditions{}
	if semitones := pitchSemitones(req.Params.Pitch); semitones != 0 {
		additions.PostProcess = &struct {
			Pitch int `json:"pitch"`
		}{Pitch: semitones}
	}
	if raw, err := json.Marshal(additions); err == nil {
		body.ReqParams.Additions = string(raw)
	}
	return body, label
}

// ratioToRate 把倍率换算为接口的 [-50,100] 区间，1.0 对应 0。
func ratioToRate(ratio float64) int {
	if ratio <= 0 {
		return 0
	}
	rate := int(math.Round((ratio - 1) * 100))
	return min(max(rate, -50), 100)
}

// pitchSemitones 把音高倍率换算为 [-12,12] 个半音。
func pitchSemitones(ratio float64) int {
	if ratio <= 0 {
		return 0
	}
	st := int(math.Round(12 * math.Log2(ratio)))
	return min(max(st, -12), 12)
}

// emotionParameters 仅对支持情绪的音色返回标签与强度，中性情绪不设置。
func emotionParameters(speaker string, v emotion.Voice) (string, float32, bool) {
	if v.Label == "" || v.Label == emotion.Neutral {
		return "", 0, false
	}
	if !supportsEmotion(speaker) {
		return "", 0, false
	}
	scale := v.Scale
	if scale <= 0 {
		scale = 3
	}
	scale = min(max(scale, 1), 5)
	return string(v.Label), scale, true
}

func supportsEmotion(speaker string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(speaker)), "_emo")
}

func resourceCandidates(speaker string) []string {
	const (
		defaultResource = "volc.service_type.10029"
		megaResource    = "volc.megatts.default"
		seedResource    = "seed-tts-2.0"
	)
	if strings.HasPrefix(speaker, "S_") {
		return []string{megaResource}
	}
	normalized := strings.ToLower(speaker)
	for _, hint := range []string{"bigtts", "seed", "megatts", "uranus", "venus", "jupiter", "mars"} {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

// speakerCandidates 去重后返回请求音色与默认音色。
func speakerCandidates(requested, fallback string) []string {
	var out []string
	for _, s := range []string{requested, fallback} {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		dup := false
		for _, existing := range out {
			if strings.EqualFold(existing, s) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, s)
		}
	}
	return out
}

func isResourceMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}

// RequestFor 用情绪分析结果构造合成请求。
func RequestFor(sessionID, text, speaker string, emo emotion.Result) speechmodel.SynthesisRequest {
	params := emo.Params
	if params == (lexicon.Params{}) {
		params = lexicon.NeutralParams
	}
	return speechmodel.SynthesisRequest{
		SessionID: sessionID,
		Text:      text,
		Speaker:   speaker,
		Voice:     emo.Voice,
		Params:    params,
	}
}
