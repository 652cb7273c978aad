package model

import (
	"encoding/json"
	"fmt"
)

// ElementType UI元素类型
type ElementType string

const (
	ElementButton      ElementType = "button"
	ElementTextField   ElementType = "text_field"
	ElementMediaPlayer ElementType = "media_player"
)

// CanvasSize bounds element coordinates on both axes.
const CanvasSize = 1000

// Position 元素在画布上的坐标
type Position struct {
	X float64 `json:"x" validate:"gte=0,lte=1000"`
	Y float64 `json:"y" validate:"gte=0,lte=1000"`
}

// InCanvas reports whether the position lies inside the canvas.
func (p Position) InCanvas() bool {
	return p.X >= 0 && p.X <= CanvasSize && p.Y >= 0 && p.Y <= CanvasSize
}

// ElementProperties is the type-specific payload of a UIElement. The concrete
// type always matches UIElement.Type.
type ElementProperties interface {
	ElementType() ElementType
}

// ButtonProperties 按钮属性
type ButtonProperties struct {
	Text  string
	Color string
	Extra map[string]any
}

func (*ButtonProperties) ElementType() ElementType { return ElementButton }

// TextFieldProperties 文本框属性
type TextFieldProperties struct {
	Placeholder string
	Color       string
	Extra       map[string]any
}

func (*TextFieldProperties) ElementType() ElementType { return ElementTextField }

// MediaPlayerProperties 媒体播放器属性
type MediaPlayerProperties struct {
	Src   string
	Color string
	Extra map[string]any
}

func (*MediaPlayerProperties) ElementType() ElementType { return ElementMediaPlayer }

// GenericProperties holds the payload of element types the server does not model.
type GenericProperties struct {
	Type   ElementType
	Fields map[string]any
}

func (g *GenericProperties) ElementType() ElementType { return g.Type }

// UIElement 节点上的交互元素
type UIElement struct {
	ID         string            `json:"id" validate:"required"`
	Type       ElementType       `json:"type" validate:"oneof=button text_field media_player"`
	Position   Position          `json:"position"`
	Properties ElementProperties `json:"properties" validate:"required"`
}

// DefaultProperties returns the properties a freshly added element of type t starts with.
func DefaultProperties(t ElementType) ElementProperties {
	switch t {
	case ElementButton:
		return &ButtonProperties{Text: "按钮", Color: "#1890ff"}
	case ElementTextField:
		return &TextFieldProperties{Placeholder: "请输入...", Color: "#000000"}
	case ElementMediaPlayer:
		return &MediaPlayerProperties{Src: "", Color: "#ffffff"}
	default:
		return &GenericProperties{Type: t, Fields: map[string]any{}}
	}
}

type uiElementJSON struct {
	ID         string          `json:"id"`
	Type       ElementType     `json:"type"`
	Position   Position        `json:"position"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// MarshalJSON flattens the typed properties back into a plain object.
func (e UIElement) MarshalJSON() ([]byte, error) {
	props, err := encodeProperties(e.Properties)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", e.ID, err)
	}
	return json.Marshal(uiElementJSON{ID: e.ID, Type: e.Type, Position: e.Position, Properties: props})
}

// UnmarshalJSON decodes properties into the variant selected by "type".
func (e *UIElement) UnmarshalJSON(data []byte) error {
	var raw uiElementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	props, err := decodeProperties(raw.Type, raw.Properties)
	if err != nil {
		return fmt.Errorf("element %s: %w", raw.ID, err)
	}
	*e = UIElement{ID: raw.ID, Type: raw.Type, Position: raw.Position, Properties: props}
	return nil
}

func encodeProperties(p ElementProperties) (json.RawMessage, error) {
	fields := map[string]any{}
	switch v := p.(type) {
	case nil:
	case *ButtonProperties:
		copyExtra(fields, v.Extra)
		fields["text"] = v.Text
		fields["color"] = v.Color
	case *TextFieldProperties:
		copyExtra(fields, v.Extra)
		fields["placeholder"] = v.Placeholder
		fields["color"] = v.Color
	case *MediaPlayerProperties:
		copyExtra(fields, v.Extra)
		fields["src"] = v.Src
		fields["color"] = v.Color
	case *GenericProperties:
		copyExtra(fields, v.Fields)
	default:
		return nil, fmt.Errorf("unsupported properties type %T", p)
	}
	return json.Marshal(fields)
}

func decodeProperties(t ElementType, raw json.RawMessage) (ElementProperties, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("properties must be an object: %w", err)
	}

	var err error
	switch t {
	case ElementButton:
		p := &ButtonProperties{}
		if p.Text, err = takeString(fields, "text"); err != nil {
			return nil, err
		}
		if p.Color, err = takeString(fields, "color"); err != nil {
			return nil, err
		}
		p.Extra = leftover(fields)
		return p, nil
	case ElementTextField:
		p := &TextFieldProperties{}
		if p.Placeholder, err = takeString(fields, "placeholder"); err != nil {
			return nil, err
		}
		if p.Color, err = takeString(fields, "color"); err != nil {
			return nil, err
		}
		p.Extra = leftover(fields)
		return p, nil
	case ElementMediaPlayer:
		p := &MediaPlayerProperties{}
		if p.Src, err = takeString(fields, "src"); err != nil {
			return nil, err
		}
		if p.Color, err = takeString(fields, "color"); err != nil {
			return nil, err
		}
		p.Extra = leftover(fields)
		return p, nil
	default:
		return &GenericProperties{Type: t, Fields: fields}, nil
	}
}

// takeString removes key from fields. A missing key yields "".
func takeString(fields map[string]any, key string) (string, error) {
	v, ok := fields[key]
	if !ok || v == nil {
		delete(fields, key)
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("properties.%s must be a string", key)
	}
	delete(fields, key)
	return s, nil
}

func leftover(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func copyExtra(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
