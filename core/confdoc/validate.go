package confdoc

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"DHAdmin/model"

	"github.com/go-playground/validator/v10"
)

// ValidationError names the first field of a document that failed validation.
type ValidationError struct {
	Path    string
	Message string
	cause   error
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "配置验证失败: " + e.Message
	}
	return "配置验证失败: " + e.Path + " - " + e.Message
}

func (e *ValidationError) Unwrap() error { return e.cause }

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// 错误路径使用 JSON 字段名
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks doc against the full configuration schema and returns the
// first failure, or nil.
func Validate(doc *Document) *ValidationError {
	if err := getValidator().Struct(doc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &ValidationError{Message: err.Error()}
	}

	if n := doc.NodeConfig; n != nil {
		if id := n.DuplicateElementID(); id != "" {
			return &ValidationError{Path: "nodeConfig.uiComponents.elements", Message: "元素ID重复: " + id}
		}
	}
	if g := doc.GlobalConfig; g != nil {
		mapping := g.DigitalHuman.ModelConfig.TTS.EmotionMapping
		for _, emotion := range model.RequiredEmotions {
			if _, ok := mapping[emotion]; !ok {
				return &ValidationError{
					Path:    "globalConfig.digitalHuman.modelConfig.tts.emotionMapping." + emotion,
					Message: "必填项",
				}
			}
		}
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	// Namespace 以根类型名开头，例如 Document.globalConfig.digitalHuman
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}
	return &ValidationError{Path: path, Message: tagMessage(fe)}
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必填项"
	case "oneof":
		return "必须是以下值之一: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "eq":
		return "必须为 " + fe.Param()
	case "gte":
		return "不能小于 " + fe.Param()
	case "lte":
		return "不能大于 " + fe.Param()
	case "ltefield":
		return "不能大于 " + lowerFirst(fe.Param())
	case "url":
		return "必须是有效的URL"
	default:
		return "校验失败: " + fe.Tag()
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
