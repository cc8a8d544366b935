package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

var ErrInvalidPageRange = errors.New("invalid page range, expected e.g. 1-5,8,10-12")

var pageRangePattern = regexp.MustCompile(`^(\d+(-\d+)?)(,(\d+(-\d+)?))*$`)

// ValidatePageRange проверяет формат диапазона страниц.
// Пустая строка означает все страницы.
func ValidatePageRange(s string) bool {
	return s == "" || pageRangePattern.MatchString(s)
}

// CheckPageRange проверяет формат и номера страниц без учёта размера документа:
// номера начинаются с единицы, диапазоны не убывают.
func CheckPageRange(s string) error {
	if !ValidatePageRange(s) {
		return ErrInvalidPageRange
	}
	if s == "" {
		return nil
	}
	for _, part := range strings.Split(s, ",") {
		if _, _, err := parseBounds(part); err != nil {
			return err
		}
	}
	return nil
}

// FilterPageRangeInput оставляет во вводе только цифры, запятые и дефисы
func FilterPageRangeInput(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParsePageRange разворачивает диапазон в список индексов страниц (с нуля).
// Номера в строке начинаются с единицы; страницы за пределами документа отбрасываются.
func ParsePageRange(s string, pageCount int) ([]int, error) {
	if !ValidatePageRange(s) {
		return nil, ErrInvalidPageRange
	}

	if s == "" {
		pages := make([]int, pageCount)
		for i := range pages {
			pages[i] = i
		}
		return pages, nil
	}

	seen := make(map[int]bool)
	pages := make([]int, 0)
	for _, part := range strings.Split(s, ",") {
		from, to, err := parseBounds(part)
		if err != nil {
			return nil, err
		}
		for p := from; p <= to && p <= pageCount; p++ {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p-1)
			}
		}
	}

	if len(pages) == 0 {
		return nil, ErrInvalidPageRange
	}
	return pages, nil
}

func parseBounds(part string) (int, int, error) {
	fromStr, toStr, isRange := strings.Cut(part, "-")
	from, err := strconv.Atoi(fromStr)
	if err != nil || from < 1 {
		return 0, 0, ErrInvalidPageRange
	}
	if !isRange {
		return from, from, nil
	}
	to, err := strconv.Atoi(toStr)
	if err != nil || to < from {
		return 0, 0, ErrInvalidPageRange
	}
	return from, to, nil
}
