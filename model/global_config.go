package model

import "time"

// GlobalConfig 项目全局配置：数字人模型、交互与休眠模式
type GlobalConfig struct {
	ID           string        `json:"id" validate:"required"`
	ProjectID    string        `json:"projectId" validate:"required"`
	DigitalHuman *DigitalHuman `json:"digitalHuman" validate:"required"`
	Interaction  *Interaction  `json:"interaction" validate:"required"`
	SleepMode    *SleepMode    `json:"sleepMode" validate:"required"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

type DigitalHuman struct {
	ModelConfig *ModelConfig `json:"modelConfig" validate:"required"`
}

type ModelConfig struct {
	VideoSources *VideoSources `json:"videoSources" validate:"required"`
	TTS          *TTSConfig    `json:"tts" validate:"required"`
}

type VideoSources struct {
	UpdateStrategy string `json:"updateStrategy" validate:"eq=version_control"`
}

type TTSConfig struct {
	VoiceLib       *VoiceLib          `json:"voiceLib" validate:"required"`
	EmotionMapping map[string]float64 `json:"emotionMapping" validate:"required"`
}

type VoiceLib struct {
	API  string     `json:"api" validate:"required,url"`
	Rate *RateRange `json:"rate" validate:"required"`
}

// RateRange 语速范围
type RateRange struct {
	Min float64 `json:"min" validate:"gte=0.1,lte=1,ltefield=Max"`
	Max float64 `json:"max" validate:"gte=1,lte=5"`
}

// 交互模式
const (
	ModeVoice = "voice"
	ModeText  = "text"

	VoiceControlHoldToTalk = "hold_to_talk"
	VoiceControlContinuous = "continuous"
)

type Interaction struct {
	DefaultMode  string             `json:"defaultMode" validate:"oneof=voice text"`
	VoiceControl *VoiceControl      `json:"voiceControl" validate:"required"`
	Wakeup       *InteractionWakeup `json:"wakeup" validate:"required"`
	Interrupt    *Interrupt         `json:"interrupt" validate:"required"`
}

type VoiceControl struct {
	Type string `json:"type" validate:"oneof=hold_to_talk continuous"`
}

type InteractionWakeup struct {
	Methods     []string     `json:"methods" validate:"required"`
	Sensitivity *Sensitivity `json:"sensitivity" validate:"required"`
}

// Sensitivity 唤醒灵敏度，threshold 取值 [0,1]
type Sensitivity struct {
	Level     float64 `json:"level" validate:"gte=1,lte=10"`
	Threshold float64 `json:"threshold" validate:"gte=0,lte=1"`
}

type Interrupt struct {
	Phrases    []string    `json:"phrases" validate:"required"`
	ClearDelay *ClearDelay `json:"clearDelay" validate:"required"`
}

// ClearDelay 打断后清屏延迟（毫秒）
type ClearDelay struct {
	Min     float64 `json:"min" validate:"gte=0,ltefield=Max"`
	Max     float64 `json:"max" validate:"gte=0"`
	Default float64 `json:"default" validate:"gte=0"`
}

type SleepMode struct {
	Activation *SleepActivation `json:"activation" validate:"required"`
	Wakeup     *SleepWakeup     `json:"wakeup" validate:"required"`
}

// SleepActivation 无交互 timeout 毫秒后或听到 phrases 时进入休眠
type SleepActivation struct {
	Timeout int64    `json:"timeout" validate:"gte=0"`
	Phrases []string `json:"phrases" validate:"required"`
}

type SleepWakeup struct {
	Phrases    []string `json:"phrases" validate:"required"`
	RetryLimit int      `json:"retryLimit" validate:"gte=0"`
}

// RequiredEmotions must be present in every emotion mapping.
var RequiredEmotions = []string{"happy", "sad"}
