package keyer

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"math"
	"reflect"
	"sort"
	"time"
)

// ErrUncacheable is returned when an argument cannot be reduced to a
// deterministic fingerprint (functions, channels, unsafe pointers, or
// structures nested beyond maxDepth).
var ErrUncacheable = errors.New("keyer: argument cannot be canonicalized")

// maxDepth bounds recursive traversal so cyclic pointer structures fail
// instead of spinning.
const maxDepth = 64

// Fingerprint is a deterministic, comparable key derived from call arguments.
type Fingerprint string

// Type tags keep the combinator position- and shape-sensitive: a string "1"
// and an int 1, or a one-element list and its bare element, never collide.
const (
	tagNil byte = iota + 1
	tagBool
	tagInt
	tagUint
	tagFloat
	tagComplex
	tagString
	tagBytes
	tagSeq
	tagMap
	tagObject
	tagPositional
	tagKeyword
)

// Key produces a fingerprint for a call with the given positional and
// keyword arguments. Structurally equal argument sets produce equal
// fingerprints regardless of keyword insertion order; structurally
// different sets produce different fingerprints with overwhelming
// probability.
//
// Key is a pure function and is safe for concurrent use.
func Key(pos []any, kw map[string]any) (Fingerprint, error) {
	h := sha256.New()

	h.Write([]byte{tagPositional})
	writeLen(h, len(pos))
	for _, arg := range pos {
		if err := writeValue(h, reflect.ValueOf(arg), 0); err != nil {
			return "", err
		}
	}

	h.Write([]byte{tagKeyword})
	writeLen(h, len(kw))
	names := make([]string, 0, len(kw))
	for name := range kw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeString(h, name)
		if err := writeValue(h, reflect.ValueOf(kw[name]), 0); err != nil {
			return "", err
		}
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// writeValue reduces a single value into the hash. Variants: primitive,
// ordered sequence, unordered mapping (covers sets), opaque object.
func writeValue(h hash.Hash, v reflect.Value, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting exceeds %d levels", ErrUncacheable, maxDepth)
	}
	if !v.IsValid() {
		h.Write([]byte{tagNil})
		return nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			h.Write([]byte{tagNil})
			return nil
		}
		return writeValue(h, v.Elem(), depth+1)

	case reflect.Bool:
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		h.Write([]byte{tagBool, b})
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Width-normalized: int8(3) and int64(3) fingerprint identically.
		h.Write([]byte{tagInt})
		writeUint64(h, uint64(v.Int()))
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		h.Write([]byte{tagUint})
		writeUint64(h, v.Uint())
		return nil

	case reflect.Float32, reflect.Float64:
		h.Write([]byte{tagFloat})
		writeUint64(h, math.Float64bits(v.Float()))
		return nil

	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		h.Write([]byte{tagComplex})
		writeUint64(h, math.Float64bits(real(c)))
		writeUint64(h, math.Float64bits(imag(c)))
		return nil

	case reflect.String:
		h.Write([]byte{tagString})
		writeString(h, v.String())
		return nil

	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			h.Write([]byte{tagBytes})
			b := v.Bytes()
			writeLen(h, len(b))
			h.Write(b)
			return nil
		}
		h.Write([]byte{tagSeq})
		writeLen(h, v.Len())
		for i := 0; i < v.Len(); i++ {
			if err := writeValue(h, v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		return writeMap(h, v, depth)

	case reflect.Struct:
		return writeStruct(h, v, depth)

	default:
		// func, chan, unsafe pointer
		return fmt.Errorf("%w: unsupported type %s", ErrUncacheable, v.Type())
	}
}

// writeMap reduces an unordered mapping by sorting entries on the canonical
// digest of each key, so the caller's insertion order is never observable.
// Sets expressed as map[T]struct{} get the sorted-set reduction for free.
func writeMap(h hash.Hash, v reflect.Value, depth int) error {
	type pair struct {
		keyDigest []byte
		val       reflect.Value
	}
	pairs := make([]pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		kh := sha256.New()
		if err := writeValue(kh, iter.Key(), depth+1); err != nil {
			return err
		}
		pairs = append(pairs, pair{keyDigest: kh.Sum(nil), val: iter.Value()})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].keyDigest, pairs[j].keyDigest) < 0
	})

	h.Write([]byte{tagMap})
	writeLen(h, len(pairs))
	for _, p := range pairs {
		h.Write(p.keyDigest)
		if err := writeValue(h, p.val, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// writeStruct reduces an arbitrary object to its type name plus a snapshot
// of its exported fields, sorted by field name. This is best-effort: two
// distinct values with an identical snapshot are treated as equal keys,
// which is accepted as long as it is deterministic.
//
// A struct exposing no exported fields falls back to its formatted
// representation, with time.Time keyed by wall clock and zone instead so
// values differing only in their monotonic reading collide.
func writeStruct(h hash.Hash, v reflect.Value, depth int) error {
	t := v.Type()

	// time.Time carries a monotonic clock reading that fmt renders but that
	// has no bearing on the instant, so reduce the value to its wall clock.
	if tv, ok := v.Interface().(time.Time); ok {
		h.Write([]byte{tagObject})
		writeString(h, t.String())
		writeUint64(h, uint64(tv.UnixNano()))
		writeString(h, tv.Location().String())
		return nil
	}

	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() {
			names = append(names, f.Name)
		}
	}
	sort.Strings(names)

	h.Write([]byte{tagObject})
	writeString(h, t.String())
	if len(names) == 0 {
		writeString(h, fmt.Sprint(v.Interface()))
		return nil
	}
	writeLen(h, len(names))
	for _, name := range names {
		writeString(h, name)
		if err := writeValue(h, v.FieldByName(name), depth+1); err != nil {
			return err
		}
	}
	return nil
}

func writeString(h hash.Hash, s string) {
	writeLen(h, len(s))
	h.Write([]byte(s))
}

func writeLen(h hash.Hash, n int) {
	writeUint64(h, uint64(n))
}

func writeUint64(h hash.Hash, n uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	h.Write(buf[:])
}
