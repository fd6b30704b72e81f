package zarr

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Dtype is a zarr data type in NumPy typestr form, e.g. "<f8": a byte
// order character ("<" little-endian, ">" big-endian, "|" not relevant),
// a basic type code and the item size in bytes. Datetime types may carry
// a unit suffix such as "<M8[ns]".
//
// Arrays read by this package hold booleans, integers, unsigned integers
// or floats; their cells are decoded to float64.
type Dtype struct {
	ByteOrder ByteOrder
	BasicType BasicType
	ByteSize  int
	Units     string
}

var (
	_ json.Unmarshaler = (*Dtype)(nil)
	_ json.Marshaler   = (*Dtype)(nil)
)

func ParseDtype(s string) (dt Dtype, err error) {
	// python zarr has been seen HTML-escaping the byte order
	s = strings.Replace(s, "&lt;", "<", 1)
	s = strings.Replace(s, "&gt;", ">", 1)

	if len(s) < 3 {
		return dt, fmt.Errorf("invalid Dtype string. %q is too short", s)
	}

	if dt.ByteOrder, err = ParseByteOrder(rune(s[0])); err != nil {
		return dt, err
	}
	if dt.BasicType, err = ParseBasicType(rune(s[1])); err != nil {
		return dt, err
	}

	sizeStr := s[2:]
	if i := strings.IndexByte(sizeStr, '['); i >= 0 {
		sizeStr, dt.Units = sizeStr[:i], sizeStr[i:]
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		return dt, fmt.Errorf("invalid Dtype size in %q: %w", s, err)
	}
	dt.ByteSize = size
	return dt, nil
}

func (dt Dtype) String() string {
	return fmt.Sprintf("%s%s%d%s", string(dt.ByteOrder), string(dt.BasicType), dt.ByteSize, dt.Units)
}

func (dt Dtype) MarshalJSON() ([]byte, error) {
	return json.Marshal(dt.String())
}

func (dt *Dtype) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return fmt.Errorf("structured dtypes are not supported: %w", err)
	}
	t, err := ParseDtype(s)
	if err != nil {
		return err
	}

	*dt = t
	return nil
}

type ByteOrder rune

const (
	BONotRelevant  ByteOrder = '|'
	BOLittleEndian ByteOrder = '<'
	BOBigEndian    ByteOrder = '>'
)

func ParseByteOrder(r rune) (ByteOrder, error) {
	switch o := ByteOrder(r); o {
	case BONotRelevant, BOLittleEndian, BOBigEndian:
		return o, nil
	}
	return 0, fmt.Errorf("unsupported byte order format: %q", r)
}

func (o ByteOrder) binary() binary.ByteOrder {
	if o == BOLittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

type BasicType rune

const (
	BTBoolean       BasicType = 'b'
	BTInteger       BasicType = 'i'
	BTUnsigned      BasicType = 'u'
	BTFloatingPoint BasicType = 'f'
	BTComplex       BasicType = 'c'
	BTTimedelta     BasicType = 'm'
	BTDatetime      BasicType = 'M'
	BTString        BasicType = 'S'
	BTUnicode       BasicType = 'U'
	BTOther         BasicType = 'V'
)

var basicTypeNames = map[BasicType]string{
	BTBoolean:       "bool",
	BTInteger:       "int",
	BTUnsigned:      "uint",
	BTFloatingPoint: "float",
	BTComplex:       "complex",
	BTTimedelta:     "timeDelta",
	BTDatetime:      "dateTime",
	BTString:        "string",
	BTUnicode:       "unicode",
	BTOther:         "other",
}

func ParseBasicType(r rune) (BasicType, error) {
	t := BasicType(r)
	if _, ok := basicTypeNames[t]; !ok {
		return t, fmt.Errorf("unsupported basic type: %q", r)
	}
	return t, nil
}

func (bt BasicType) Human() string {
	return basicTypeNames[bt]
}

// Numeric reports whether cells of this type can be decoded to float64.
func (dt Dtype) Numeric() bool {
	switch dt.BasicType {
	case BTBoolean:
		return dt.ByteSize == 1
	case BTInteger, BTUnsigned:
		return dt.ByteSize == 1 || dt.ByteSize == 2 || dt.ByteSize == 4 || dt.ByteSize == 8
	case BTFloatingPoint:
		return dt.ByteSize == 4 || dt.ByteSize == 8
	}
	return false
}

// decode converts raw cells to float64. len(b) must be
// len(out)*dt.ByteSize.
func (dt Dtype) decode(b []byte, out []float64) error {
	if len(b) != len(out)*dt.ByteSize {
		return fmt.Errorf("decoding %s: %d bytes for %d cells", dt, len(b), len(out))
	}
	bo := dt.ByteOrder.binary()
	n := dt.ByteSize
	for i := range out {
		cell := b[i*n : (i+1)*n]
		switch dt.BasicType {
		case BTBoolean:
			if cell[0] != 0 {
				out[i] = 1
			} else {
				out[i] = 0
			}
		case BTInteger:
			switch n {
			case 1:
				out[i] = float64(int8(cell[0]))
			case 2:
				out[i] = float64(int16(bo.Uint16(cell)))
			case 4:
				out[i] = float64(int32(bo.Uint32(cell)))
			case 8:
				out[i] = float64(int64(bo.Uint64(cell)))
			}
		case BTUnsigned:
			switch n {
			case 1:
				out[i] = float64(cell[0])
			case 2:
				out[i] = float64(bo.Uint16(cell))
			case 4:
				out[i] = float64(bo.Uint32(cell))
			case 8:
				out[i] = float64(bo.Uint64(cell))
			}
		case BTFloatingPoint:
			switch n {
			case 4:
				out[i] = float64(math.Float32frombits(bo.Uint32(cell)))
			case 8:
				out[i] = math.Float64frombits(bo.Uint64(cell))
			}
		default:
			return fmt.Errorf("unsupported decoding type %s", dt)
		}
	}
	return nil
}

// encode is the inverse of decode. Values are truncated to the type.
func (dt Dtype) encode(in []float64) ([]byte, error) {
	n := dt.ByteSize
	b := make([]byte, len(in)*n)
	bo := dt.ByteOrder.binary()
	for i, v := range in {
		cell := b[i*n : (i+1)*n]
		switch dt.BasicType {
		case BTBoolean:
			if v != 0 {
				cell[0] = 1
			}
		case BTInteger, BTUnsigned:
			var u uint64
			if dt.BasicType == BTInteger {
				u = uint64(int64(v))
			} else {
				u = uint64(v)
			}
			switch n {
			case 1:
				cell[0] = byte(u)
			case 2:
				bo.PutUint16(cell, uint16(u))
			case 4:
				bo.PutUint32(cell, uint32(u))
			case 8:
				bo.PutUint64(cell, u)
			}
		case BTFloatingPoint:
			switch n {
			case 4:
				bo.PutUint32(cell, math.Float32bits(float32(v)))
			case 8:
				bo.PutUint64(cell, math.Float64bits(v))
			}
		default:
			return nil, fmt.Errorf("unsupported encoding type %s", dt)
		}
	}
	return b, nil
}
