package service

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"roster/internal/model"
)

const DefaultPageSize = 6

type SortKey string

const (
	SortByName SortKey = "name"
	SortByRoll SortKey = "roll"
	SortByCGPA SortKey = "cgpa"
)

// ParseSortKey maps "" to SortByName and rejects unknown keys.
func ParseSortKey(s string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case "":
		return SortByName, nil
	case SortByName, SortByRoll, SortByCGPA:
		return key, nil
	default:
		return "", fmt.Errorf("unknown sort key %q (want name, roll or cgpa)", s)
	}
}

type Query struct {
	Text string
	Sort SortKey
	Page int // 1-based
}

// View is one page of the filtered and sorted list.
type View struct {
	Items      []model.Student `json:"data"`
	Query      string          `json:"query"`
	Sort       SortKey         `json:"sort"`
	Page       int             `json:"page"`
	PageSize   int             `json:"limit"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
}

// BuildView filters, sorts and paginates students. The page is clamped into
// [1, TotalPages]; there is always at least one page.
func BuildView(students []model.Student, q Query, pageSize int) View {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	key := q.Sort
	if key == "" {
		key = SortByName
	}

	filtered := Filter(students, q.Text)
	Sort(filtered, key)

	total := len(filtered)
	totalPages := max(1, (total+pageSize-1)/pageSize)
	page := min(max(q.Page, 1), totalPages)

	start := (page - 1) * pageSize
	end := min(start+pageSize, total)

	return View{
		Items:      filtered[start:end],
		Query:      q.Text,
		Sort:       key,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Filter keeps the records whose name, roll or branch contains text,
// ignoring case and surrounding space. Empty text keeps everything.
func Filter(students []model.Student, text string) []model.Student {
	q := strings.ToLower(strings.TrimSpace(text))
	out := make([]model.Student, 0, len(students))
	for _, s := range students {
		if q == "" ||
			strings.Contains(strings.ToLower(s.Name), q) ||
			strings.Contains(strings.ToLower(s.Roll), q) ||
			strings.Contains(strings.ToLower(s.Branch), q) {
			out = append(out, s)
		}
	}
	return out
}

// Sort orders students in place. cgpa sorts descending with a missing cgpa
// counted as 0; name and roll sort ascending by collation order.
func Sort(students []model.Student, key SortKey) {
	if key == SortByCGPA {
		sort.SliceStable(students, func(i, j int) bool {
			return students[i].CGPAValue() > students[j].CGPAValue()
		})
		return
	}

	field := func(s model.Student) string { return s.Name }
	if key == SortByRoll {
		field = func(s model.Student) string { return s.Roll }
	}
	col := collate.New(language.Und)
	sort.SliceStable(students, func(i, j int) bool {
		return col.CompareString(field(students[i]), field(students[j])) < 0
	})
}
