package postgres

import "reflect"

// Row structs are flat: every persisted field carries a `db` tag, `db:"-"`
// or no tag skips it. Embedded structs are not expanded.

type column struct {
	index int
	name  string
}

func dbColumns(t reflect.Type) []column {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	cols := make([]column, 0, t.NumField())
	for i := range t.NumField() {
		tag := t.Field(i).Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		cols = append(cols, column{index: i, name: tag})
	}
	return cols
}

// ExtractDBColumns lists the columns of row type T in field order.
// Repositories call it once per row type at package init.
func ExtractDBColumns[T any]() []string {
	cols := dbColumns(reflect.TypeFor[T]())
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap maps the columns of a row to their values, ready for
// squirrel's SetMap.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	cols := dbColumns(rv.Type())
	if cols == nil {
		return nil
	}

	res := make(map[string]any, len(cols))
	for _, c := range cols {
		res[c.name] = rv.Field(c.index).Interface()
	}
	return res
}
