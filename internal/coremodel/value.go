package coremodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind 属性值类型（封闭集合）
type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindString
	KindBool
	KindStrings
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindStrings:
		return "strings"
	default:
		return "invalid"
	}
}

// Value 带类型标签的属性值，只能通过构造函数创建
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    bool
	list []string
}

func IntValue(v int64) Value        { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value    { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value    { return Value{kind: KindString, s: v} }
func BoolValue(v bool) Value        { return Value{kind: KindBool, b: v} }
func StringsValue(v []string) Value { return Value{kind: KindStrings, list: append([]string(nil), v...)} }

// Kind 返回值类型，零值为 0
func (v Value) Kind() Kind { return v.kind }

// Int 取整数；浮点值截断
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	}
	return 0, false
}

// Float 取浮点；整数值自动转换
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Strings() ([]string, bool) {
	if v.kind != KindStrings {
		return nil, false
	}
	return append([]string(nil), v.list...), true
}

// String 文本形式，命令参数编码时使用
func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindStrings:
		return fmt.Sprint(v.list)
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBool:
		return json.Marshal(v.b)
	case KindStrings:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}

// UnmarshalJSON 按 JSON 类型推断：整数优先于浮点
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			*v = IntValue(i)
			return nil
		}
		f, err := x.Float64()
		if err != nil {
			return err
		}
		*v = FloatValue(f)
	case string:
		*v = StringValue(x)
	case bool:
		*v = BoolValue(x)
	case []interface{}:
		list := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return fmt.Errorf("unsupported list element %T", e)
			}
			list = append(list, s)
		}
		*v = StringsValue(list)
	default:
		return fmt.Errorf("unsupported attribute value %s", string(data))
	}
	return nil
}

// Attributes 命名属性集合
type Attributes map[string]Value

func (a Attributes) Set(key string, v Value) { a[key] = v }

func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

func (a Attributes) Int(key string) (int64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	return v.Int()
}

func (a Attributes) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	return v.Float()
}

func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (a Attributes) Bool(key string) (bool, bool) {
	v, ok := a[key]
	if !ok {
		return false, false
	}
	return v.Bool()
}

func (a Attributes) Strings(key string) ([]string, bool) {
	v, ok := a[key]
	if !ok {
		return nil, false
	}
	return v.Strings()
}
