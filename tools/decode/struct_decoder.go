package decode

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Options 用于定制 Decode 行为。
type Options struct {
	// 宽松解码：例如 "123" -> int、1.0 -> int64
	WeaklyTypedInput bool
	// 出现目标结构体未声明的字段时报错
	ErrorUnused bool
}

func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true}
}

// Payload 将事件的 data 部分（map / json.RawMessage / []byte）解码到 T。
// 字段读取使用 `json` tag。
func Payload[T any](data any, opts ...Options) (*T, error) {
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	m, err := asMap(data)
	if err != nil {
		return nil, err
	}

	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		ErrorUnused:      cfg.ErrorUnused,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			trimStringHook(),
			stringToSliceHook(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return &out, nil
}

func asMap(data any) (map[string]any, error) {
	switch v := data.(type) {
	case nil:
		return nil, fmt.Errorf("payload is nil")
	case map[string]any:
		return v, nil
	case json.RawMessage:
		return unmarshalMap(v)
	case []byte:
		return unmarshalMap(v)
	case string:
		return unmarshalMap([]byte(v))
	default:
		return nil, fmt.Errorf("payload type %T not object", data)
	}
}

func unmarshalMap(b []byte) (map[string]any, error) {
	if len(b) == 0 || string(b) == "null" {
		return nil, fmt.Errorf("payload is nil")
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("payload not object: %w", err)
	}
	return m, nil
}

// floatToIntHook：JSON 数字解出来是 float64，目标为整型时转换。
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

func trimStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.String {
			return data, nil
		}
		return strings.TrimSpace(data.(string)), nil
	}
}

// stringToSliceHook：客户端把单个图片地址当字符串传时，包成一元数组。
func stringToSliceHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Slice {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return []string{}, nil
		}
		return []string{s}, nil
	}
}
