package decision

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/z-companion/backend/internal/analysis/contextual"
	"github.com/zhouzirui/z-companion/backend/internal/model/lexicon"
	"github.com/zhouzirui/z-companion/backend/internal/model/scene"
)

func unsafe(code RejectCode, reason, phrase string) SafetyAssessment {
	return SafetyAssessment{Code: code, Reason: reason, phrase: phrase}
}

// assessSafety 依次执行安全检查，遇到第一项失败即返回。
// 危险词检查对所有指令生效；其余场景检查只针对需要安全检查的指令。
func (m *Maker) assessSafety(id lexicon.CommandID, ctx *contextual.AnalysisContext) SafetyAssessment {
	profile, ok := m.rules.Command(id)
	if !ok {
		return unsafe(RejectCheckFailed, "unable to complete safety check", "无法完成安全检查")
	}

	if !profile.RequiresSafetyCheck {
		if words := m.dangerWords(ctx.OriginalText); len(words) > 0 {
			return dangerous(words)
		}
		return SafetyAssessment{IsSafe: true, Score: 1}
	}

	if !ctx.IsSafe {
		return unsafe(RejectUnsafeEnvironment, "environment unsafe: obstacle too close", "当前环境不安全")
	}
	if words := m.dangerWords(ctx.OriginalText); len(words) > 0 {
		return dangerous(words)
	}

	snap := ctx.Scene
	if snap.HasObstacles() {
		return unsafe(RejectObstacle, "obstacle ahead", "前方有障碍物")
	}
	if m.rules.IsRestrictedArea(snapArea(snap)) {
		return unsafe(RejectRestrictedArea, "restricted area: "+snap.Area, "当前处于限制区域: "+snap.Area)
	}
	if speed, ok := snap.SpeedValue(); ok && speed > m.rules.Safety.MaxSpeed {
		return unsafe(RejectSpeedLimit,
			fmt.Sprintf("speed %.2f exceeds limit %.2f", speed, m.rules.Safety.MaxSpeed),
			"速度超过限制")
	}

	return SafetyAssessment{IsSafe: true, Score: m.safetyScore(snap)}
}

func dangerous(words []string) SafetyAssessment {
	return unsafe(RejectDangerKeyword,
		"dangerous words in request: "+strings.Join(words, ", "),
		"包含危险词汇: "+strings.Join(words, ", "))
}

// dangerWords 按配置顺序返回文本中出现的危险词。
func (m *Maker) dangerWords(text string) []string {
	var found []string
	for _, w := range m.rules.Safety.DangerKeywords {
		if w != "" && strings.Contains(text, w) {
			found = append(found, w)
		}
	}
	return found
}

// safetyScore 是通过的必检项占全部必检项的比例；没有必检项时为 1。
func (m *Maker) safetyScore(snap *scene.Snapshot) float64 {
	checks := m.rules.Safety.RequiredChecks
	if len(checks) == 0 {
		return 1
	}
	var passed int
	for _, check := range checks {
		if m.passCheck(check, snap) {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

func (m *Maker) passCheck(check string, snap *scene.Snapshot) bool {
	switch check {
	case lexicon.CheckDistance:
		nearest, ok := snap.NearestObstacle()
		return !ok || nearest >= m.rules.Safety.MinObstacleDistance
	case lexicon.CheckSpeed:
		speed, ok := snap.SpeedValue()
		return !ok || speed <= m.rules.Safety.MaxSpeed
	case lexicon.CheckObstacles:
		return !snap.HasObstacles()
	case lexicon.CheckArea:
		return !m.rules.IsRestrictedArea(snapArea(snap))
	default:
		// 未知检查项视为未通过
		return false
	}
}

func snapArea(snap *scene.Snapshot) string {
	if snap == nil {
		return ""
	}
	return snap.Area
}
