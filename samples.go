package pulse

import (
	"fmt"
	"reflect"
	"unsafe"
)

// sliceBytes returns a byte view of a slice of a supported numeric type without copying.
// A nil interface or a nil slice yields a nil view, an empty slice yields an empty non-nil view.
func sliceBytes(data any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}

	if b, ok := data.([]byte); ok {
		if b == nil {
			return nil, nil
		}

		return b, nil
	}

	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("expected a slice, got %T", data)
	}

	switch rv.Type().Elem().Kind() {
	case reflect.Int8, reflect.Uint8,
		reflect.Int16, reflect.Uint16,
		reflect.Int32, reflect.Uint32,
		reflect.Float32, reflect.Float64:
	default:
		return nil, fmt.Errorf("unsupported slice element type: %s", rv.Type().Elem().Kind())
	}

	if rv.IsNil() {
		return nil, nil
	}

	if rv.Len() == 0 {
		return []byte{}, nil
	}

	byteLen := rv.Len() * int(rv.Type().Elem().Size())
	ptr := unsafe.Pointer(rv.Index(0).Addr().Pointer())

	return unsafe.Slice((*byte)(ptr), byteLen), nil
}
