package idm

import (
	"fmt"
	"strings"
)

var filterEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// EqualsFilter builds a CREST `field eq "value"` query filter.
func EqualsFilter(field, value string) string {
	return fmt.Sprintf(`%s eq "%s"`, field, filterEscaper.Replace(value))
}

// ParseEqualsFilter is the inverse of EqualsFilter. It only understands the
// single-clause form produced above.
func ParseEqualsFilter(filter string) (field, value string, ok bool) {
	field, rest, found := strings.Cut(strings.TrimSpace(filter), " eq ")
	if !found || field == "" {
		return "", "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", "", false
	}

	var b strings.Builder
	quoted := rest[1 : len(rest)-1]
	for i := 0; i < len(quoted); i++ {
		c := quoted[i]
		if c == '\\' {
			if i+1 == len(quoted) {
				return "", "", false
			}
			i++
			c = quoted[i]
		} else if c == '"' {
			return "", "", false
		}
		b.WriteByte(c)
	}
	return strings.TrimSpace(field), b.String(), true
}
