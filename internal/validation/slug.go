// Package validation содержит вспомогательные функции проверки и нормализации данных.
package validation

import "strings"

// Slugify преобразует название продукта в URL-безопасный slug: буквы и цифры
// приводятся к нижнему регистру, остальные символы схлопываются в дефис.
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	prevDash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash && b.Len() > 0 {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
