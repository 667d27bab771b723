package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns lists the "db" tags of T in field order, descending into embedded
// structs. Repositories call it once at construction.
func ExtractDBColumns[T any]() []string {
	var zero T
	return columnsOf(reflect.TypeOf(zero))
}

func columnsOf(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var cols []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			cols = append(cols, columnsOf(f.Type)...)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			cols = append(cols, tag)
		}
	}
	return cols
}

type fieldMeta struct {
	tagged   map[int]string
	embedded []int
}

// fieldCache maps reflect.Type to *fieldMeta.
var fieldCache sync.Map

func metaOf(t reflect.Type) *fieldMeta {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.(*fieldMeta)
	}
	meta := &fieldMeta{tagged: make(map[int]string)}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			meta.embedded = append(meta.embedded, i)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			meta.tagged[i] = tag
		}
	}
	fieldCache.Store(t, meta)
	return meta
}

// StructToMap maps "db" tags to field values, including embedded structs.
// Fields tagged "-" or untagged are left out.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := metaOf(rv.Type())
	res := make(map[string]any, len(meta.tagged))
	for idx, tag := range meta.tagged {
		res[tag] = rv.Field(idx).Interface()
	}
	for _, idx := range meta.embedded {
		for k, val := range StructToMap(rv.Field(idx).Interface()) {
			res[k] = val
		}
	}
	return res
}
