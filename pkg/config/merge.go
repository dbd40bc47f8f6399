package config

import (
	"fmt"
	"reflect"
)

// MergeConfig 把 src 中已设置的字段深度合并进 dst 并返回 dst
//
// 零值（false、0、""、nil、空切片、空 map）视为未设置，因此默认为 true 的开关
// 无法通过 src 关闭，这类字段需要调用方在合并后显式赋值。
// 切片整体替换，map 按键合并，没有导出字段的结构体（如 time.Time）整体替换。
func MergeConfig[T any](dst, src *T) (*T, error) {
	switch {
	case dst == nil && src == nil:
		return nil, ErrNilConfig
	case dst == nil:
		return src, nil
	case src == nil:
		return dst, nil
	}

	root := reflect.TypeOf(dst).Elem().Name()
	if err := merge(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem(), root); err != nil {
		return nil, err
	}
	return dst, nil
}

func merge(dst, src reflect.Value, path string) error {
	if unset(src) {
		return nil
	}

	switch dst.Kind() {
	case reflect.Struct:
		t := dst.Type()
		if !hasExportedFields(t) {
			dst.Set(src)
			return nil
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if err := merge(dst.Field(i), src.Field(i), path+"."+f.Name); err != nil {
				return err
			}
		}

	case reflect.Map:
		if dst.IsNil() {
			dst.Set(reflect.MakeMapWithSize(dst.Type(), src.Len()))
		}
		iter := src.MapRange()
		for iter.Next() {
			key := iter.Key()
			cur := dst.MapIndex(key)
			if !cur.IsValid() {
				dst.SetMapIndex(key, iter.Value())
				continue
			}
			// map 元素不可寻址，复制出来合并后写回
			elem := reflect.New(cur.Type()).Elem()
			elem.Set(cur)
			if err := merge(elem, iter.Value(), fmt.Sprintf("%s[%v]", path, key)); err != nil {
				return err
			}
			dst.SetMapIndex(key, elem)
		}

	case reflect.Ptr:
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return merge(dst.Elem(), src.Elem(), path)

	default:
		if !dst.CanSet() {
			return fmt.Errorf("config field %s is not settable", path)
		}
		dst.Set(src)
	}
	return nil
}

func unset(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}

func hasExportedFields(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}
