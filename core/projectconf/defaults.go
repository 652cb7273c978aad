package projectconf

import (
	"time"

	"DHAdmin/model"

	"github.com/google/uuid"
)

// DefaultButtonID is the id of the button every new node starts with.
const DefaultButtonID = "default-button-1"

// DefaultNodeConfig 新项目的节点配置：系统背景加一个"开始对话"按钮
func DefaultNodeConfig(projectID string, now time.Time) *model.NodeConfig {
	return &model.NodeConfig{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		Background: &model.Background{Source: model.BackgroundSystem},
		UIComponents: &model.UIComponents{
			Elements: []model.UIElement{{
				ID:         DefaultButtonID,
				Type:       model.ElementButton,
				Position:   model.Position{X: 100, Y: 100},
				Properties: &model.ButtonProperties{Text: "开始对话", Color: "#1890ff"},
			}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DefaultGlobalConfig 新项目的全局配置
func DefaultGlobalConfig(projectID string, now time.Time) *model.GlobalConfig {
	return &model.GlobalConfig{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		DigitalHuman: &model.DigitalHuman{
			ModelConfig: &model.ModelConfig{
				VideoSources: &model.VideoSources{UpdateStrategy: "version_control"},
				TTS: &model.TTSConfig{
					VoiceLib: &model.VoiceLib{
						API:  "https://api.example.com/tts",
						Rate: &model.RateRange{Min: 0.5, Max: 2.0},
					},
					EmotionMapping: map[string]float64{"happy": 1, "sad": 2},
				},
			},
		},
		Interaction: &model.Interaction{
			DefaultMode:  model.ModeVoice,
			VoiceControl: &model.VoiceControl{Type: model.VoiceControlHoldToTalk},
			Wakeup: &model.InteractionWakeup{
				Methods:     []string{"voice_keyword"},
				Sensitivity: &model.Sensitivity{Level: 1, Threshold: 0.8},
			},
			Interrupt: &model.Interrupt{
				Phrases:    []string{"打断", "暂停"},
				ClearDelay: &model.ClearDelay{Min: 1000, Max: 5000, Default: 2000},
			},
		},
		SleepMode: &model.SleepMode{
			Activation: &model.SleepActivation{Timeout: 300000, Phrases: []string{"再见", "拜拜"}},
			Wakeup:     &model.SleepWakeup{Phrases: []string{"你好", "在吗"}, RetryLimit: 3},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
