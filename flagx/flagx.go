// Package flagx binds cobra flags to struct fields via tags, so a
// command's options live in one declared struct instead of scattered
// Flags() calls.
//
// 支持的 tag：
//   - flag:     flag 名（必填），可带短名，如 "workers,w"
//   - usage:    帮助文本
//   - default:  默认值
//   - required: "true" 时标记为必填
package flagx

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Bind 按 struct tag 向命令注册 flags
//
// 用法：
//
//	type probeOptions struct {
//	    Targets []string      `flag:"target,t" usage:"probe targets" required:"true"`
//	    Workers int           `flag:"workers,w" usage:"worker count" default:"10"`
//	    Delay   time.Duration `flag:"delay" usage:"base delay per request" default:"0s"`
//	}
//	var opts probeOptions
//	flagx.Bind(cmd, &opts)
func Bind(cmd *cobra.Command, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("flagx: target must be a pointer to struct")
	}

	t := v.Elem().Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		flagTag := field.Tag.Get("flag")
		if flagTag == "" {
			continue
		}

		name, short := splitFlagName(flagTag)
		usage := field.Tag.Get("usage")
		defaultVal := field.Tag.Get("default")

		if err := registerFlag(cmd, field, name, short, usage, defaultVal); err != nil {
			return fmt.Errorf("flagx: field %s: %w", field.Name, err)
		}

		if field.Tag.Get("required") == "true" {
			if err := cmd.MarkFlagRequired(name); err != nil {
				return fmt.Errorf("flagx: mark %s required: %w", name, err)
			}
		}
	}

	return nil
}

// Parse 把命令的 flag 值读回 struct 字段
func Parse(cmd *cobra.Command, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("flagx: target must be a pointer to struct")
	}

	v = v.Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}
		flagTag := fieldType.Tag.Get("flag")
		if flagTag == "" {
			continue
		}

		name, _ := splitFlagName(flagTag)
		if err := readFlag(cmd, field, name); err != nil {
			return fmt.Errorf("flagx: field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

// splitFlagName 拆出 flag 名与短名
func splitFlagName(tag string) (name, short string) {
	parts := strings.Split(tag, ",")
	name = parts[0]
	if len(parts) > 1 {
		short = parts[1]
	}
	return name, short
}

// registerFlag 按字段类型注册 flag
func registerFlag(cmd *cobra.Command, field reflect.StructField, name, short, usage, defaultVal string) error {
	// time.Duration 底层是 int64，先于 Kind 分支判断
	if field.Type == durationType {
		var def time.Duration
		if defaultVal != "" {
			parsed, err := time.ParseDuration(defaultVal)
			if err != nil {
				return fmt.Errorf("bad duration default %q: %w", defaultVal, err)
			}
			def = parsed
		}
		cmd.Flags().DurationP(name, short, def, usage)
		return nil
	}

	switch field.Type.Kind() {
	case reflect.String:
		cmd.Flags().StringP(name, short, defaultVal, usage)

	case reflect.Int:
		def := 0
		if defaultVal != "" {
			parsed, err := strconv.Atoi(defaultVal)
			if err != nil {
				return fmt.Errorf("bad int default %q: %w", defaultVal, err)
			}
			def = parsed
		}
		cmd.Flags().IntP(name, short, def, usage)

	case reflect.Bool:
		def := false
		if defaultVal != "" {
			parsed, err := strconv.ParseBool(defaultVal)
			if err != nil {
				return fmt.Errorf("bad bool default %q: %w", defaultVal, err)
			}
			def = parsed
		}
		cmd.Flags().BoolP(name, short, def, usage)

	case reflect.Float64:
		def := 0.0
		if defaultVal != "" {
			parsed, err := strconv.ParseFloat(defaultVal, 64)
			if err != nil {
				return fmt.Errorf("bad float default %q: %w", defaultVal, err)
			}
			def = parsed
		}
		cmd.Flags().Float64P(name, short, def, usage)

	case reflect.Slice:
		if field.Type.Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", field.Type.Elem().Kind())
		}
		cmd.Flags().StringSliceP(name, short, nil, usage)

	default:
		return fmt.Errorf("unsupported field type: %s", field.Type.Kind())
	}

	return nil
}

// readFlag 按字段类型读取 flag 值
func readFlag(cmd *cobra.Command, field reflect.Value, name string) error {
	if field.Type() == durationType {
		val, err := cmd.Flags().GetDuration(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		val, err := cmd.Flags().GetString(name)
		if err != nil {
			return err
		}
		field.SetString(val)

	case reflect.Int:
		val, err := cmd.Flags().GetInt(name)
		if err != nil {
			return err
		}
		field.SetInt(int64(val))

	case reflect.Bool:
		val, err := cmd.Flags().GetBool(name)
		if err != nil {
			return err
		}
		field.SetBool(val)

	case reflect.Float64:
		val, err := cmd.Flags().GetFloat64(name)
		if err != nil {
			return err
		}
		field.SetFloat(val)

	case reflect.Slice:
		val, err := cmd.Flags().GetStringSlice(name)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(val))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}
