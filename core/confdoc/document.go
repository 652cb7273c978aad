// Package confdoc turns project configuration into portable files and back,
// and keeps in-memory version snapshots of it.
package confdoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"DHAdmin/core/apperr"
	"DHAdmin/model"

	"github.com/goccy/go-yaml"
)

// MaxImportSize 导入文件大小上限 2MB
const MaxImportSize = 2 << 20

// Format is the encoding of an exported document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrUnsupportedFormat = apperr.Validation("不支持的文件格式")
	ErrFileTooLarge      = apperr.Validation("文件大小不能超过2MB")
	ErrEmptyDocument     = apperr.Validation("文件必须包含节点配置或全局配置")
)

// ParseFormat accepts json, yaml and yml; empty means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ContentType 导出文件的 MIME 类型
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Document is the portable configuration file.
type Document struct {
	NodeConfig   *model.NodeConfig   `json:"nodeConfig,omitempty"`
	GlobalConfig *model.GlobalConfig `json:"globalConfig,omitempty"`
	ExportedAt   *time.Time          `json:"exportedAt,omitempty"`
}

// Export encodes doc as indented JSON or YAML.
func Export(doc Document, format Format) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("marshal document: %w", err))
	}
	switch format {
	case FormatJSON, "":
		return data, nil
	case FormatYAML:
		out, err := yaml.JSONToYAML(data)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("convert document to yaml: %w", err))
		}
		return out, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Import parses and validates an exported document. Nothing is persisted.
func Import(data []byte, format Format) (*Document, error) {
	if len(data) > MaxImportSize {
		return nil, ErrFileTooLarge
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	if format == FormatYAML {
		converted, err := yaml.YAMLToJSON(data)
		if err != nil {
			return nil, invalid(&ValidationError{Message: "YAML 格式错误"}, err)
		}
		data = converted
	} else if format != FormatJSON && format != "" {
		return nil, ErrUnsupportedFormat
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, invalid(decodeError(err), err)
	}
	if doc.NodeConfig == nil && doc.GlobalConfig == nil {
		return nil, ErrEmptyDocument
	}
	if ve := Validate(&doc); ve != nil {
		return nil, invalid(ve, nil)
	}
	return &doc, nil
}

// FileName 导出文件名，例如 node-config-p1-2026-01-02.json
func FileName(doc Document, projectID string, format Format, now time.Time) string {
	prefix := "project-config"
	switch {
	case doc.NodeConfig != nil && doc.GlobalConfig == nil:
		prefix = "node-config"
	case doc.GlobalConfig != nil && doc.NodeConfig == nil:
		prefix = "global-config"
	}
	return fmt.Sprintf("%s-%s-%s%s", prefix, projectID, now.Format("2006-01-02"), format.Ext())
}

func invalid(ve *ValidationError, cause error) error {
	if cause != nil {
		ve.cause = cause
	}
	return apperr.Wrap(apperr.KindValidation, ve.Error(), ve)
}

func decodeError(err error) *ValidationError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{Path: typeErr.Field, Message: "类型错误，期望 " + jsonKind(typeErr.Type.Kind().String())}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ValidationError{Message: "JSON 格式错误"}
	}
	return &ValidationError{Message: err.Error()}
}

func jsonKind(goKind string) string {
	switch goKind {
	case "float64", "float32", "int", "int64", "int32":
		return "number"
	case "string":
		return "string"
	case "bool":
		return "boolean"
	case "slice", "array":
		return "array"
	default:
		return "object"
	}
}
