package confdoc

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"DHAdmin/core/apperr"
	"DHAdmin/core/projectconf"
	"DHAdmin/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return Document{
		NodeConfig:   projectconf.DefaultNodeConfig("p1", now),
		GlobalConfig: projectconf.DefaultGlobalConfig("p1", now),
	}
}

func validationPath(t *testing.T, err error) *ValidationError {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %v", err)
	return ve
}

func TestExportImport_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			doc := sampleDocument()
			data, err := Export(doc, format)
			require.NoError(t, err)

			back, err := Import(data, format)
			require.NoError(t, err)

			want, _ := json.Marshal(doc)
			got, _ := json.Marshal(back)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

func TestImport_MissingDigitalHuman(t *testing.T) {
	raw := map[string]any{}
	data, _ := json.Marshal(sampleDocument().GlobalConfig)
	require.NoError(t, json.Unmarshal(data, &raw))
	delete(raw, "digitalHuman")
	body, _ := json.Marshal(map[string]any{"globalConfig": raw})

	_, err := Import(body, FormatJSON)
	ve := validationPath(t, err)
	assert.Equal(t, "globalConfig.digitalHuman", ve.Path)
	assert.Contains(t, apperr.Message(err), "digitalHuman")
}

func TestImport_RequiresOneSection(t *testing.T) {
	_, err := Import([]byte(`{"exportedAt":"2026-01-01T00:00:00Z"}`), FormatJSON)
	assert.ErrorIs(t, err, ErrEmptyDocument)
	assert.Equal(t, "文件必须包含节点配置或全局配置", apperr.Message(err))
}

func TestImport_SchemaFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(d *Document)
		path   string
	}{
		{
			name:   "position outside canvas",
			mutate: func(d *Document) { d.NodeConfig.UIComponents.Elements[0].Position.X = 1001 },
			path:   "nodeConfig.uiComponents.elements[0].position.x",
		},
		{
			name:   "bad background source",
			mutate: func(d *Document) { d.NodeConfig.Background.Source = "cloud" },
			path:   "nodeConfig.background.source",
		},
		{
			name:   "rate min below floor",
			mutate: func(d *Document) { d.GlobalConfig.DigitalHuman.ModelConfig.TTS.VoiceLib.Rate.Min = 0.05 },
			path:   "globalConfig.digitalHuman.modelConfig.tts.voiceLib.rate.min",
		},
		{
			name:   "tts api not a url",
			mutate: func(d *Document) { d.GlobalConfig.DigitalHuman.ModelConfig.TTS.VoiceLib.API = "not a url" },
			path:   "globalConfig.digitalHuman.modelConfig.tts.voiceLib.api",
		},
		{
			name:   "threshold above one",
			mutate: func(d *Document) { d.GlobalConfig.Interaction.Wakeup.Sensitivity.Threshold = 1.5 },
			path:   "globalConfig.interaction.wakeup.sensitivity.threshold",
		},
		{
			name:   "negative retry limit",
			mutate: func(d *Document) { d.GlobalConfig.SleepMode.Wakeup.RetryLimit = -1 },
			path:   "globalConfig.sleepMode.wakeup.retryLimit",
		},
		{
			name:   "missing sad emotion",
			mutate: func(d *Document) { delete(d.GlobalConfig.DigitalHuman.ModelConfig.TTS.EmotionMapping, "sad") },
			path:   "globalConfig.digitalHuman.modelConfig.tts.emotionMapping.sad",
		},
		{
			name:   "missing node config id",
			mutate: func(d *Document) { d.NodeConfig.ID = "" },
			path:   "nodeConfig.id",
		},
		{
			name:   "missing global project id",
			mutate: func(d *Document) { d.GlobalConfig.ProjectID = "" },
			path:   "globalConfig.projectId",
		},
		{
			name:   "missing wakeup methods",
			mutate: func(d *Document) { d.GlobalConfig.Interaction.Wakeup.Methods = nil },
			path:   "globalConfig.interaction.wakeup.methods",
		},
		{
			name:   "missing interrupt phrases",
			mutate: func(d *Document) { d.GlobalConfig.Interaction.Interrupt.Phrases = nil },
			path:   "globalConfig.interaction.interrupt.phrases",
		},
		{
			name:   "missing sleep activation phrases",
			mutate: func(d *Document) { d.GlobalConfig.SleepMode.Activation.Phrases = nil },
			path:   "globalConfig.sleepMode.activation.phrases",
		},
		{
			name:   "missing sleep wakeup phrases",
			mutate: func(d *Document) { d.GlobalConfig.SleepMode.Wakeup.Phrases = nil },
			path:   "globalConfig.sleepMode.wakeup.phrases",
		},
		{
			name: "duplicate element id",
			mutate: func(d *Document) {
				els := d.NodeConfig.UIComponents.Elements
				d.NodeConfig.UIComponents.Elements = append(els, els[0])
			},
			path: "nodeConfig.uiComponents.elements",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			doc := sampleDocument()
			c.mutate(&doc)
			data, err := Export(doc, FormatJSON)
			require.NoError(t, err)

			_, err = Import(data, FormatJSON)
			ve := validationPath(t, err)
			assert.Equal(t, c.path, ve.Path)
			assert.True(t, strings.HasPrefix(ve.Error(), "配置验证失败: "+c.path+" - "))
		})
	}
}

func TestImport_EmptyPhraseListsAreAllowed(t *testing.T) {
	doc := sampleDocument()
	doc.GlobalConfig.Interaction.Interrupt.Phrases = []string{}
	doc.GlobalConfig.SleepMode.Activation.Phrases = []string{}
	data, err := Export(doc, FormatJSON)
	require.NoError(t, err)

	back, err := Import(data, FormatJSON)
	require.NoError(t, err)
	assert.NotNil(t, back.GlobalConfig.Interaction.Interrupt.Phrases)
	assert.Empty(t, back.GlobalConfig.Interaction.Interrupt.Phrases)
}

func TestImport_TypeMismatchAndSize(t *testing.T) {
	_, err := Import([]byte(`{"nodeConfig":{"background":{"source":1}}}`), FormatJSON)
	ve := validationPath(t, err)
	assert.Equal(t, "nodeConfig.background.source", ve.Path)

	_, err = Import([]byte("{not json"), FormatJSON)
	validationPath(t, err)

	big := make([]byte, MaxImportSize+1)
	_, err = Import(big, FormatJSON)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestFileNameAndFormat(t *testing.T) {
	day := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	doc := sampleDocument()
	assert.Equal(t, "project-config-p1-2026-01-02.json", FileName(doc, "p1", FormatJSON, day))
	assert.Equal(t, "node-config-p1-2026-01-02.yaml", FileName(Document{NodeConfig: doc.NodeConfig}, "p1", FormatYAML, day))
	assert.Equal(t, "global-config-p1-2026-01-02.json", FileName(Document{GlobalConfig: doc.GlobalConfig}, "p1", FormatJSON, day))

	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)
	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSnapshots(t *testing.T) {
	s := NewSnapshots(2)
	doc := sampleDocument()

	_, err := s.Save("p1", "   ", doc.NodeConfig, doc.GlobalConfig)
	assert.ErrorIs(t, err, ErrDescriptionRequired)

	v1, err := s.Save("p1", "初始版本", doc.NodeConfig, doc.GlobalConfig)
	require.NoError(t, err)

	// 快照与原配置互不影响
	doc.NodeConfig.Background.Source = model.BackgroundCustom
	got, err := s.Get("p1", v1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BackgroundSystem, got.NodeConfig.Background.Source)
	assert.IsType(t, &model.ButtonProperties{}, got.NodeConfig.UIComponents.Elements[0].Properties)

	v2, err := s.Save("p1", "第二版", doc.NodeConfig, nil)
	require.NoError(t, err)
	v3, err := s.Save("p1", "第三版", doc.NodeConfig, nil)
	require.NoError(t, err)

	list, err := s.List("p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, v3.ID, list[0].ID)
	assert.Equal(t, v2.ID, list[1].ID)

	_, err = s.Get("p1", v1.ID)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	empty, err := s.List("other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
