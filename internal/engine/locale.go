package engine

import (
	"fmt"
	"time"
)

// Locale selects how trend month labels are written.
type Locale string

const (
	LocalePtBR Locale = "pt-BR"
	LocaleEnUS Locale = "en-US"
)

var shortMonths = map[Locale][12]string{
	LocalePtBR: {"jan.", "fev.", "mar.", "abr.", "mai.", "jun.", "jul.", "ago.", "set.", "out.", "nov.", "dez."},
	LocaleEnUS: {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
}

func (l Locale) IsValid() bool {
	_, ok := shortMonths[l]
	return ok
}

// MonthLabel formats t as "short month + year" in the locale, e.g. "jan. de 2024" or "Jan 2024".
// Unknown locales fall back to pt-BR.
func MonthLabel(l Locale, t time.Time) string {
	names, ok := shortMonths[l]
	if !ok {
		l = LocalePtBR
		names = shortMonths[l]
	}
	month := names[t.Month()-1]
	if l == LocalePtBR {
		return fmt.Sprintf("%s de %d", month, t.Year())
	}
	return fmt.Sprintf("%s %d", month, t.Year())
}
