package sqlgen

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pthm/sqljson/pkg/dbmd"
)

// aliases hands out table aliases that are unique within one statement.
type aliases struct {
	used map[string]bool
}

func newAliases() *aliases {
	return &aliases{used: make(map[string]bool)}
}

// forTable returns a fresh alias made of the lowercase initials of the
// underscore separated parts of table, e.g. "drug_reference" -> "dr".
func (a *aliases) forTable(table string) string {
	return a.next(initials(table))
}

// next returns base if unused and not a keyword, otherwise base followed by
// the smallest number that makes it unique.
func (a *aliases) next(base string) string {
	candidate := base
	for i := 1; a.used[candidate] || dbmd.IsReservedWord(candidate); i++ {
		candidate = base + strconv.Itoa(i)
	}
	a.used[candidate] = true
	return candidate
}

func initials(table string) string {
	var b strings.Builder
	for _, part := range strings.Split(table, "_") {
		if part == "" {
			continue
		}
		r := []rune(part)[0]
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	s := b.String()
	if s == "" || unicode.IsDigit(rune(s[0])) {
		return "t" + s
	}
	return s
}
