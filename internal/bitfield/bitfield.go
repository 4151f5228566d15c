// Package bitfield packs and unpacks struct fields into an integer.
//
// Adapted from the vendored bitfield helper under iansmith-mazarin's
// mazboot tree (itself a trimmed copy of golang.org/x/text/internal/gen/
// bitfield). Not imported as a module because the original lives inside
// the teacher's own repo rather than at a fetchable path; the shape —
// a "bitfield" struct tag naming a bit width, packed low bit first — is
// kept so the GDT/IDT descriptor encoders and the syscall packed-argument
// decoders that use it read the same way the teacher's PageFlags does.
package bitfield

import (
	"fmt"
	"reflect"
)

// Config controls the width of the packed integer produced by Pack and
// consumed by Unpack.
type Config struct {
	// NumBits is the width of the packed representation. 0 means no limit
	// check is performed.
	NumBits uint
}

// Pack packs the tagged fields of struct x into a uint64, low field first.
// Only fields tagged `bitfield:",<bits>"` participate; untagged fields are
// skipped. Returns an error if a field's value doesn't fit its declared
// width or the total exceeds Config.NumBits.
func Pack(x interface{}, c *Config) (uint64, error) {
	if c == nil {
		c = &Config{NumBits: 64}
	}

	v := reflect.ValueOf(x)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return 0, fmt.Errorf("bitfield: Pack expects a struct, got %v", v.Kind())
	}

	t := v.Type()
	var packed uint64
	var bitOffset uint

	for i := 0; i < v.NumField(); i++ {
		bits, ok, err := fieldWidth(t.Field(i))
		if err != nil {
			return 0, err
		}
		if !ok || bits == 0 {
			continue
		}

		fieldBits, err := fieldBits(v.Field(i))
		if err != nil {
			return 0, fmt.Errorf("bitfield: field %s: %w", t.Field(i).Name, err)
		}

		maxValue := uint64(1)<<bits - 1
		if fieldBits > maxValue {
			return 0, fmt.Errorf("bitfield: field %s value %d exceeds %d bits", t.Field(i).Name, fieldBits, bits)
		}

		packed |= fieldBits << bitOffset
		bitOffset += bits
	}

	if c.NumBits > 0 && bitOffset > c.NumBits {
		return 0, fmt.Errorf("bitfield: packed width %d exceeds NumBits %d", bitOffset, c.NumBits)
	}
	return packed, nil
}

// Unpack is the inverse of Pack: it walks the same tagged fields, in the
// same order, and assigns each its slice of bits out of packed.
func Unpack(packed uint64, x interface{}, c *Config) error {
	v := reflect.ValueOf(x)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bitfield: Unpack expects a pointer to struct, got %v", v.Kind())
	}
	v = v.Elem()
	t := v.Type()

	var bitOffset uint
	for i := 0; i < v.NumField(); i++ {
		bits, ok, err := fieldWidth(t.Field(i))
		if err != nil {
			return err
		}
		if !ok || bits == 0 {
			continue
		}

		mask := uint64(1)<<bits - 1
		fieldValue := (packed >> bitOffset) & mask
		bitOffset += bits

		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		switch field.Kind() {
		case reflect.Bool:
			field.SetBool(fieldValue != 0)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			field.SetUint(fieldValue)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			field.SetInt(int64(fieldValue))
		default:
			return fmt.Errorf("bitfield: unsupported field kind %v for %s", field.Kind(), t.Field(i).Name)
		}
	}
	return nil
}

func fieldWidth(f reflect.StructField) (uint, bool, error) {
	tag := f.Tag.Get("bitfield")
	if tag == "" {
		return 0, false, nil
	}
	var bits uint
	if _, err := fmt.Sscanf(tag, ",%d", &bits); err != nil {
		return 0, false, fmt.Errorf("bitfield: invalid tag %q on field %s", tag, f.Name)
	}
	return bits, true, nil
}

func fieldBits(fv reflect.Value) (uint64, error) {
	switch fv.Kind() {
	case reflect.Bool:
		if fv.Bool() {
			return 1, nil
		}
		return 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fv.Uint(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		val := fv.Int()
		if val < 0 {
			return 0, fmt.Errorf("negative value %d", val)
		}
		return uint64(val), nil
	default:
		return 0, fmt.Errorf("unsupported kind %v", fv.Kind())
	}
}
