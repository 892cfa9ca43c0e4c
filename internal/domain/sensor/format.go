package sensor

import "strconv"

// AppendReading appends the textual form of value for the kind:
// integers as decimal, decimals with six fractional digits.
func AppendReading(dst []byte, kind Kind, value float64) []byte {
	if kind == Integer {
		return strconv.AppendInt(dst, int64(value), 10)
	}

	return strconv.AppendFloat(dst, value, 'f', 6, 32)
}
