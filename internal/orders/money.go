package orders

import "strconv"

// FormatAmount renders cents as a whole-unit amount with thousands separators,
// e.g. 1250000 -> "12,500". TZS has no sub-unit in practice so the fractional
// part is dropped from display.
func FormatAmount(cents int64) string {
	units := cents / 100
	s := strconv.FormatInt(units, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
