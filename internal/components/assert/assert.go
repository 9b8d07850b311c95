package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics when value is nil, including typed nil pointers hidden behind
// an interface.
func NotNil(value any, name ...string) {
	if value == nil || isNilPointer(value) {
		panic(fmt.Sprintf("expected %s to be not nil", describe(name)))
	}
}

func NotEmptyStr(str string, name ...string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be non-empty", describe(name)))
	}
}

func isNilPointer(value any) bool {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func describe(name []string) string {
	if len(name) == 0 {
		return "value"
	}
	return name[0]
}
