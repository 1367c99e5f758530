package scene

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Lighting 是场景光照等级。
type Lighting string

const (
	LightingBright Lighting = "bright"
	LightingDim    Lighting = "dim"
	LightingDark   Lighting = "dark"
)

// Obstacle 是感知到的障碍物。Distance 缺失时视为无限远。
type Obstacle struct {
	Distance *float64 `json:"distance,omitempty"`
}

// Snapshot 是一次请求附带的场景快照，所有字段均可缺省。
type Snapshot struct {
	Obstacles    []Obstacle `json:"obstacles,omitempty"`
	Temperature  string     `json:"temperature,omitempty"`
	Lighting     string     `json:"lighting,omitempty"`
	SafetyStatus string     `json:"safety_status,omitempty"`
	Area         string     `json:"area,omitempty"`
	Speed        *float64   `json:"speed,omitempty"`

	// Malformed 记录解码时无法识别、已按缺省处理的字段名。
	Malformed []string `json:"-"`
}

// UnmarshalJSON 宽松解析：speed 可为数字或数字字符串，
// 障碍物距离同理；无法识别的值按缺省处理并记入 Malformed。
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		Obstacles    json.RawMessage `json:"obstacles"`
		Temperature  json.RawMessage `json:"temperature"`
		Lighting     json.RawMessage `json:"lighting"`
		SafetyStatus json.RawMessage `json:"safety_status"`
		Area         json.RawMessage `json:"area"`
		Speed        json.RawMessage `json:"speed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Snapshot
	out.Temperature = out.decodeString("temperature", raw.Temperature)
	out.Lighting = out.decodeString("lighting", raw.Lighting)
	out.SafetyStatus = out.decodeString("safety_status", raw.SafetyStatus)
	out.Area = out.decodeString("area", raw.Area)
	out.Speed = out.decodeNumber("speed", raw.Speed)

	if len(raw.Obstacles) > 0 && string(raw.Obstacles) != "null" {
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(raw.Obstacles, &items); err != nil {
			out.Malformed = append(out.Malformed, "obstacles")
		} else {
			out.Obstacles = make([]Obstacle, 0, len(items))
			for _, item := range items {
				out.Obstacles = append(out.Obstacles, Obstacle{
					Distance: out.decodeNumber("obstacles.distance", item["distance"]),
				})
			}
		}
	}

	*s = out
	return nil
}

func (s *Snapshot) decodeString(field string, raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		s.Malformed = append(s.Malformed, field)
		return ""
	}
	return strings.TrimSpace(v)
}

func (s *Snapshot) decodeNumber(field string, raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil && !math.IsNaN(parsed) {
			return &parsed
		}
	}
	s.Malformed = append(s.Malformed, field)
	return nil
}

// HasObstacles reports whether any obstacle was perceived.
func (s *Snapshot) HasObstacles() bool {
	return s != nil && len(s.Obstacles) > 0
}

// NearestObstacle 返回最近障碍物的距离；没有带距离的障碍物时 ok 为 false。
func (s *Snapshot) NearestObstacle() (distance float64, ok bool) {
	if s == nil {
		return 0, false
	}
	distance = math.Inf(1)
	for _, o := range s.Obstacles {
		if o.Distance != nil && *o.Distance < distance {
			distance = *o.Distance
			ok = true
		}
	}
	return distance, ok
}

// TemperatureCelsius 解析形如 "25°C" 的温度。缺失或无法解析时 ok 为 false。
func (s *Snapshot) TemperatureCelsius() (value float64, ok bool) {
	if s == nil || s.Temperature == "" {
		return 0, false
	}
	text := strings.TrimSpace(s.Temperature)
	for _, suffix := range []string{"°C", "℃", "°c", "C", "c"} {
		if strings.HasSuffix(text, suffix) {
			text = strings.TrimSpace(strings.TrimSuffix(text, suffix))
			break
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// LightingLevel 归一化光照字段，兼容中文取值。
func (s *Snapshot) LightingLevel() (Lighting, bool) {
	if s == nil {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(s.Lighting)) {
	case "bright", "明亮":
		return LightingBright, true
	case "dim", "昏暗":
		return LightingDim, true
	case "dark", "黑暗":
		return LightingDark, true
	default:
		return "", false
	}
}

// ReportsDanger 为 true 表示安全状态字段存在且不是"安全"。
func (s *Snapshot) ReportsDanger() bool {
	if s == nil {
		return false
	}
	status := strings.ToLower(strings.TrimSpace(s.SafetyStatus))
	return status != "" && status != "safe" && status != "安全"
}

// SpeedValue 返回速度；缺失时 ok 为 false。
func (s *Snapshot) SpeedValue() (float64, bool) {
	if s == nil || s.Speed == nil {
		return 0, false
	}
	return *s.Speed, true
}
