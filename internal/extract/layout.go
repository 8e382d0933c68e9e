package extract

import "strings"

// tokens maps moment-style format tokens to Go reference layout
// fragments, longest first so "YYYY" wins over "YY".
var tokens = []struct {
	moment string
	layout string
}{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"DD", "02"},
	{"D", "2"},
	{"dddd", "Monday"},
	{"ddd", "Mon"},
}

// Layout turns a date format into a Go time layout. Formats that already
// contain digits are taken to be Go layouts and returned unchanged.
// Text inside square brackets is copied literally.
func Layout(format string) string {
	if strings.ContainsAny(format, "0123456789") {
		return format
	}

	var b strings.Builder
	for i := 0; i < len(format); {
		if format[i] == '[' {
			if end := strings.IndexByte(format[i:], ']'); end > 0 {
				b.WriteString(format[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		matched := false
		for _, tok := range tokens {
			if strings.HasPrefix(format[i:], tok.moment) {
				b.WriteString(tok.layout)
				i += len(tok.moment)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}
