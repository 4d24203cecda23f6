// Package tag fills zero-valued struct fields from `default:"..."` tags.
package tag

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const tagName = "default"

var (
	ErrTargetMustBePointer = errors.New("target must be a non-nil pointer to struct")
	ErrUnsupportedType     = errors.New("unsupported type")
)

var durationType = reflect.TypeFor[time.Duration]()

// ApplyDefaults walks target recursively and sets every zero field that
// carries a default tag. Nested structs and pointers to structs are always
// descended into; non-zero fields are left untouched.
//
//	type Config struct {
//	    Addr string        `default:":8080"`
//	    TTL  time.Duration `default:"15m"`
//	}
func ApplyDefaults(target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return ErrTargetMustBePointer
	}
	return applyStruct(v.Elem(), "")
}

func applyStruct(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := range t.NumField() {
		field := t.Field(i)
		fv := v.Field(i)
		if !fv.CanSet() {
			continue
		}

		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}

		switch {
		case fv.Kind() == reflect.Struct && fv.Type() != durationType && !isTextUnmarshaler(fv):
			if err := applyStruct(fv, path); err != nil {
				return err
			}
			continue
		case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct:
			if fv.IsNil() {
				fv.Set(reflect.New(fv.Type().Elem()))
			}
			if err := applyStruct(fv.Elem(), path); err != nil {
				return err
			}
			continue
		}

		raw, ok := field.Tag.Lookup(tagName)
		if !ok || !fv.IsZero() {
			continue
		}
		if err := parse(fv, raw); err != nil {
			return fmt.Errorf("field %q (tag %q): %w", path, raw, err)
		}
	}
	return nil
}

func isTextUnmarshaler(v reflect.Value) bool {
	if !v.CanAddr() {
		return false
	}
	_, ok := v.Addr().Interface().(encoding.TextUnmarshaler)
	return ok
}

func parse(v reflect.Value, raw string) error {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(raw))
		}
	}

	raw = strings.TrimSpace(raw)
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Type() == durationType {
			d, err := time.ParseDuration(raw)
			if err != nil {
				return err
			}
			v.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(raw, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(raw, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Slice:
		if raw == "" {
			v.Set(reflect.MakeSlice(v.Type(), 0, 0))
			return nil
		}
		parts := strings.Split(raw, ",")
		s := reflect.MakeSlice(v.Type(), len(parts), len(parts))
		for i, p := range parts {
			if err := parse(s.Index(i), p); err != nil {
				return err
			}
		}
		v.Set(s)
	default:
		return ErrUnsupportedType
	}
	return nil
}
