// Package metadata 读取网易云音乐歌曲详情（SongDetail）中的字段。
//
// 歌曲详情来自外部匹配工具，结构不固定，任何层级都可能缺失或为 null。
// 本包只用“缺失”作为失败信号，从不 panic。
package metadata

import (
	"strings"

	"github.com/tidwall/gjson"
)

// listNameKey 是唯一允许作用于数组的路径段
const listNameKey = "name"

// Lookup 按点分路径读取字段。
//
// 每一段都必须作用于非空对象；若作用于非空数组且该段为 "name"，
// 结果为各元素 name 组成的数组。其余情况（缺失、null、类型不符）返回 ok=false。
// ok=false 与“存在但为空”是两种不同的结果。
func Lookup(detail gjson.Result, path string) (gjson.Result, bool) {
	value := detail
	for _, key := range strings.Split(path, ".") {
		switch {
		case value.IsObject() && Truthy(value):
			value = value.Get(gjson.Escape(key))
		case value.IsArray() && Truthy(value) && key == listNameKey:
			value = value.Get("#." + listNameKey)
		default:
			return gjson.Result{}, false
		}
	}
	if !value.Exists() || value.Type == gjson.Null {
		return gjson.Result{}, false
	}
	return value, true
}

// Has 判断顶层键是否存在（值可以是 null）
func Has(detail gjson.Result, key string) bool {
	return detail.IsObject() && detail.Get(gjson.Escape(key)).Exists()
}

// Truthy 判断值是否为“真”：缺失、null、false、0、空字符串、空数组、空对象均为假
func Truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.Null:
		return false
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return r.Float() != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		if r.IsObject() {
			empty := true
			r.ForEach(func(_, _ gjson.Result) bool {
				empty = false
				return false
			})
			return !empty
		}
		return r.Raw != ""
	default:
		return false
	}
}
