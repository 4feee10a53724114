package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics when `value` is nil or a typed nil (pointer, map, func...).
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Interface, reflect.Chan, reflect.Slice:
		if v.IsNil() {
			panic(fmt.Sprintf("expected value of type %T to be not nil", value))
		}
	}
}

func NotEmptyStr(str string) {
	if str == "" {
		panic("expected string to be non-empty")
	}
}
