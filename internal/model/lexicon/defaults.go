package lexicon

// Default 返回内置规则快照。
func Default() *Ruleset {
	r := &Ruleset{
		Commands:           defaultCommands(),
		Emotions:           defaultEmotions(),
		Vocabulary:         defaultVocabulary(),
		Responses:          defaultResponses(),
		Transitions:        defaultTransitions(),
		Safety:             defaultSafety(),
		ToneWords:          defaultToneWords(),
		DefaultEmotion:     EmotionCalm,
		SpeechSpeedRange:   Range{Min: 0.8, Max: 1.3},
		VolumeRange:        Range{Min: 0.8, Max: 1.2},
		PitchRange:         Range{Min: 0.9, Max: 1.2},
		EmotionHistorySize: 5,
		CommandHistorySize: 10,
	}
	return r.finalize()
}

func defaultCommands() [CommandCount]CommandProfile {
	return [CommandCount]CommandProfile{
		CommandCome: {
			Action:              "move_to_target",
			Display:             "过来",
			RequiresSafetyCheck: true,
			Triggers:            []string{"过来", "来这里", "到这儿"},
			Templates:           []string{"好的,我这就过来", "马上就到", "我来了"},
		},
		CommandTurn: {
			Action:    "rotate",
			Display:   "转身",
			Triggers:  []string{"转身", "转过去", "转过来"},
			Templates: []string{"好的,我转身了", "转过去了", "已经转好了"},
		},
		CommandLeft: {
			Action:              "move_left",
			Display:             "向左移动",
			RequiresSafetyCheck: true,
			Triggers:            []string{"左边", "向左", "左面"},
			Templates:           []string{"好的,向左移动", "往左边走", "向左边去"},
		},
		CommandRight: {
			Action:              "move_right",
			Display:             "向右移动",
			RequiresSafetyCheck: true,
			Triggers:            []string{"右边", "向右", "右面"},
			Templates:           []string{"好的,向右移动", "往右边走", "向右边去"},
		},
		CommandRun: {
			Action:              "run",
			Display:             "快跑",
			RequiresSafetyCheck: true,
			Triggers:            []string{"快跑", "跑起来", "加速"},
			Templates:           []string{"好的,我开始跑", "我跑起来了", "加速中"},
		},
		CommandStop: {
			Action:    "stop",
			Display:   "停下",
			Triggers:  []string{"停下", "停止", "别动"},
			Templates: []string{"好的,我停下了", "已经停止了", "不动了"},
		},
		CommandFollow: {
			Action:              "follow_target",
			Display:             "跟着你",
			RequiresSafetyCheck: true,
			Triggers:            []string{"跟着我", "跟我来", "跟上"},
			Templates:           []string{"好的,我跟着你", "我跟你走", "跟上你了"},
		},
		CommandBack: {
			Action:              "move_backward",
			Display:             "后退",
			RequiresSafetyCheck: true,
			Triggers:            []string{"后退", "往后", "向后"},
			Templates:           []string{"好的,我后退", "向后移动", "往后走"},
		},
		CommandForward: {
			Action:              "move_forward",
			Display:             "向前",
			RequiresSafetyCheck: true,
			Triggers:            []string{"向前", "往前", "前进"},
			Templates:           []string{"好的,我向前", "向前移动", "往前走"},
		},
		CommandDance: {
			Action:    "dance",
			Display:   "跳舞",
			Triggers:  []string{"跳舞", "跳一下", "跳起来"},
			Templates: []string{"好的,我跳舞", "看我的舞姿", "跳起来了"},
		},
	}
}

func defaultEmotions() [EmotionCount]EmotionProfile {
	return [EmotionCount]EmotionProfile{
		EmotionHappy: {
			Expression: "smile",
			Params:     Params{SpeechSpeed: 1.2, Volume: 1.1, Pitch: 1.1},
			Triggers:   []string{"好", "喜欢", "棒", "开心"},
		},
		EmotionSad: {
			Expression: "sad",
			Params:     Params{SpeechSpeed: 0.8, Volume: 0.9, Pitch: 0.9},
			Triggers:   []string{"不好", "难过", "伤心", "失望"},
		},
		EmotionAngry: {
			Expression: "angry",
			Params:     Params{SpeechSpeed: 1.3, Volume: 1.2, Pitch: 1.2},
			Triggers:   []string{"生气", "讨厌", "不要", "别"},
		},
		EmotionSurprised: {
			Expression: "surprised",
			Params:     Params{SpeechSpeed: 1.1, Volume: 1.1, Pitch: 1.2},
			Triggers:   []string{"哇", "真的吗", "竟然", "没想到"},
		},
		EmotionScared: {
			Expression: "scared",
			Params:     Params{SpeechSpeed: 1.2, Volume: 0.8, Pitch: 1.1},
			Triggers:   []string{"害怕", "可怕", "危险", "小心"},
		},
		EmotionCalm: {
			Expression: "calm",
			Params:     NeutralParams,
			Triggers:   []string{"好的", "明白", "知道", "平静"},
		},
		EmotionExcited: {
			Expression: "excited",
			Params:     Params{SpeechSpeed: 1.3, Volume: 1.2, Pitch: 1.2},
			Triggers:   []string{"太好了", "太棒了", "好激动", "期待"},
		},
		EmotionBored: {
			Expression: "bored",
			Params:     Params{SpeechSpeed: 0.9, Volume: 0.9, Pitch: 0.9},
			Triggers:   []string{"无聊", "困", "乏", "懒"},
		},
		EmotionFriendly: {
			Expression: "friendly",
			Params:     Params{SpeechSpeed: 1.1, Volume: 1.0, Pitch: 1.0},
			Triggers:   []string{"朋友", "一起", "帮助", "谢谢"},
		},
		EmotionShy: {
			Expression: "shy",
			Params:     Params{SpeechSpeed: 0.9, Volume: 0.8, Pitch: 0.9},
			Triggers:   []string{"害羞", "不好意思", "抱歉", "对不起"},
		},
	}
}

func defaultVocabulary() Vocabulary {
	return Vocabulary{
		Objects:    []string{"苹果", "书本", "椅子", "水杯", "手机", "电脑", "眼镜", "钥匙", "衣服", "鞋子"},
		Questions:  []string{"是吗", "真的吗", "什么", "为什么", "怎么样", "在哪里", "谁", "多少", "可以吗", "好吗"},
		Greetings:  []string{"你好", "早上好", "下午好", "晚上好", "再见"},
		Attitudes:  []string{"好的", "不好", "喜欢", "不喜欢", "可以", "不可以", "同意", "不同意", "明白", "不明白"},
		Adjectives: []string{"大", "小", "高", "低", "快", "慢", "热", "冷", "好", "坏", "多", "少", "远", "近", "新"},
	}
}

func defaultResponses() map[Intent][]string {
	return map[Intent][]string{
		IntentGreeting: {"你好", "早上好", "下午好", "晚上好", "再见"},
		IntentQuestion: {"是吗", "真的吗", "什么", "为什么", "好的", "不好", "可以", "不可以", "明白", "不明白"},
	}
}

func defaultTransitions() map[EmotionID][]EmotionID {
	return map[EmotionID][]EmotionID{
		EmotionCalm:      {EmotionHappy, EmotionSad, EmotionAngry, EmotionSurprised},
		EmotionHappy:     {EmotionCalm, EmotionSurprised},
		EmotionSad:       {EmotionCalm, EmotionAngry},
		EmotionAngry:     {EmotionCalm, EmotionSad},
		EmotionSurprised: {EmotionCalm, EmotionHappy},
	}
}

func defaultSafety() SafetyConfig {
	return SafetyConfig{
		MinObstacleDistance: 1.0,
		DangerKeywords:      []string{"撞", "跳", "摔", "打", "踢", "伤害", "危险", "破坏", "损坏"},
		RestrictedAreas:     []string{"厨房", "楼梯", "阳台"},
		MaxSpeed:            2.0,
		RequiredChecks:      []string{CheckDistance, CheckSpeed, CheckObstacles, CheckArea},
	}
}

func defaultToneWords() map[Tone][]string {
	return map[Tone][]string{
		ToneImperative:    {"请", "麻烦", "帮忙", "希望", "建议"},
		ToneInterrogative: {"吗", "呢", "吧", "啊", "么"},
		ToneExclamatory:   {"啊", "哇", "呀", "哦", "诶"},
		ToneEmphatic:      {"一定", "必须", "肯定", "绝对", "确实"},
		ToneHedging:       {"可能", "也许", "大概", "差不多", "稍微"},
	}
}
