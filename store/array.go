package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	bolt "go.etcd.io/bbolt"
)

// DType is an array element type.
type DType string

// Element types.
const (
	Float64 DType = "f8"
	Float32 DType = "f4"
	Int64   DType = "i8"
	Bool    DType = "u1"
	String  DType = "S"
)

const arrayMagic = 'A'

// ErrFormat is returned when a value cannot be decoded as an array.
var ErrFormat = errors.New("invalid array encoding")

func (dt DType) size() int {
	switch dt {
	case Float64, Int64:
		return 8
	case Float32:
		return 4
	case Bool:
		return 1
	}
	return 0
}

// header encodes the element type and the shape.
func header(dt DType, shape []int) []byte {
	h := make([]byte, 0, 3+len(dt)+8*len(shape))
	h = append(h, arrayMagic, byte(len(dt)))
	h = append(h, dt...)
	h = append(h, byte(len(shape)))
	for _, d := range shape {
		h = binary.LittleEndian.AppendUint64(h, uint64(d))
	}
	return h
}

// parseHeader returns the element type, the shape and the payload.
func parseHeader(v []byte) (dt DType, shape []int, data []byte, err error) {
	if len(v) < 2 || v[0] != arrayMagic {
		return "", nil, nil, ErrFormat
	}
	l := int(v[1])
	if len(v) < 3+l {
		return "", nil, nil, ErrFormat
	}
	dt = DType(v[2 : 2+l])
	nd := int(v[2+l])
	pos := 3 + l
	if len(v) < pos+8*nd {
		return "", nil, nil, ErrFormat
	}
	shape = make([]int, nd)
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint64(v[pos:]))
		pos += 8
	}
	data = v[pos:]
	if sz := dt.size(); sz > 0 && len(data) != sz*product(shape) {
		return "", nil, nil, fmt.Errorf("%w: %d bytes for shape %v of %s", ErrFormat, len(data), shape, dt)
	}
	return dt, shape, data, nil
}

func product(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// checkShape returns the shape to store for n elements.
func checkShape(n int, shape []int) ([]int, error) {
	if len(shape) == 0 {
		return []int{n}, nil
	}
	if product(shape) != n {
		return nil, fmt.Errorf("shape %v doesn't match %d elements", shape, n)
	}
	return shape, nil
}

func (g *Group) put(name string, value []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	return g.update(func(b *bolt.Bucket) error {
		return b.Put([]byte(name), value)
	})
}

// get decodes an array inside a read-only transaction.
func (g *Group) get(name string, fn func(dt DType, shape []int, data []byte) error) error {
	return g.view(func(b *bolt.Bucket) error {
		v := b.Get([]byte(name))
		if v == nil {
			return fmt.Errorf("%s/%s: %w", g.Path(), name, ErrNotFound)
		}
		dt, shape, data, err := parseHeader(v)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", g.Path(), name, err)
		}
		return fn(dt, shape, data)
	})
}

// WriteFloat64 stores an array of float64 with the given shape. A
// missing shape means a one-dimensional array.
func (g *Group) WriteFloat64(name string, data []float64, shape ...int) error {
	shape, err := checkShape(len(data), shape)
	if err != nil {
		return err
	}
	v := header(Float64, shape)
	for _, x := range data {
		v = binary.LittleEndian.AppendUint64(v, math.Float64bits(x))
	}
	log.Debugf("writing %s/%s %v (%s)", g.Path(), name, shape, Float64)
	return g.put(name, v)
}

// WriteFloat32 stores an array of float32.
func (g *Group) WriteFloat32(name string, data []float32, shape ...int) error {
	shape, err := checkShape(len(data), shape)
	if err != nil {
		return err
	}
	v := header(Float32, shape)
	for _, x := range data {
		v = binary.LittleEndian.AppendUint32(v, math.Float32bits(x))
	}
	log.Debugf("writing %s/%s %v (%s)", g.Path(), name, shape, Float32)
	return g.put(name, v)
}

// WriteInt stores an array of integers as int64.
func (g *Group) WriteInt(name string, data []int, shape ...int) error {
	shape, err := checkShape(len(data), shape)
	if err != nil {
		return err
	}
	v := header(Int64, shape)
	for _, x := range data {
		v = binary.LittleEndian.AppendUint64(v, uint64(int64(x)))
	}
	log.Debugf("writing %s/%s %v (%s)", g.Path(), name, shape, Int64)
	return g.put(name, v)
}

// WriteBool stores an array of booleans.
func (g *Group) WriteBool(name string, data []bool, shape ...int) error {
	shape, err := checkShape(len(data), shape)
	if err != nil {
		return err
	}
	v := header(Bool, shape)
	for _, x := range data {
		if x {
			v = append(v, 1)
		} else {
			v = append(v, 0)
		}
	}
	return g.put(name, v)
}

// WriteStrings stores a one-dimensional array of strings.
func (g *Group) WriteStrings(name string, data []string) error {
	j, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return g.put(name, append(header(String, []int{len(data)}), j...))
}

// Info returns the element type and the shape of an array.
func (g *Group) Info(name string) (dt DType, shape []int, err error) {
	err = g.get(name, func(d DType, s []int, _ []byte) error {
		dt, shape = d, s
		return nil
	})
	return
}

// ReadFloat64 reads a numeric array converting its elements to
// float64.
func (g *Group) ReadFloat64(name string) (res []float64, shape []int, err error) {
	err = g.get(name, func(dt DType, s []int, data []byte) error {
		shape = s
		n := product(s)
		res = make([]float64, n)
		for i := range res {
			switch dt {
			case Float64:
				res[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
			case Float32:
				res[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:])))
			case Int64:
				res[i] = float64(int64(binary.LittleEndian.Uint64(data[8*i:])))
			case Bool:
				res[i] = float64(data[i])
			default:
				return fmt.Errorf("%s/%s: cannot convert %s to float64", g.Path(), name, dt)
			}
		}
		return nil
	})
	return
}

// ReadInt reads an integer or a boolean array.
func (g *Group) ReadInt(name string) (res []int, shape []int, err error) {
	err = g.get(name, func(dt DType, s []int, data []byte) error {
		shape = s
		res = make([]int, product(s))
		for i := range res {
			switch dt {
			case Int64:
				res[i] = int(int64(binary.LittleEndian.Uint64(data[8*i:])))
			case Bool:
				res[i] = int(data[i])
			default:
				return fmt.Errorf("%s/%s: cannot convert %s to int", g.Path(), name, dt)
			}
		}
		return nil
	})
	return
}

// ReadStrings reads an array of strings.
func (g *Group) ReadStrings(name string) (res []string, err error) {
	err = g.get(name, func(dt DType, _ []int, data []byte) error {
		if dt != String {
			return fmt.Errorf("%s/%s: %s is not a string array", g.Path(), name, dt)
		}
		return json.Unmarshal(data, &res)
	})
	return
}
