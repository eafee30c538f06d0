package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"roster/internal/model"
)

func sampleStudents() []model.Student {
	return []model.Student{
		{ID: "1", Name: "Bob", Roll: "S2", Branch: "ECE", CGPA: model.Float(7.0)},
		{ID: "2", Name: "Amy", Roll: "S1", Branch: "CSE", CGPA: model.Float(9.0)},
		{ID: "3", Name: "carl", Roll: "S10", Branch: "ME"},
		{ID: "4", Name: "Dana", Roll: "X7", Branch: "cse", CGPA: model.Float(0)},
		{ID: "5", Name: "Émile", Roll: "S3", Branch: "Civil", CGPA: model.Float(8.4)},
		{ID: "6", Name: "", Roll: "", Branch: ""},
		{ID: "7", Name: "Ana", Roll: "A1", Branch: "CSE", CGPA: model.Float(9.0)},
		{ID: "8", Name: "Zoe", Roll: "Z9", Branch: "EEE", CGPA: model.Float(6.1)},
	}
}

func ids(students []model.Student) []string {
	out := make([]string, len(students))
	for i, s := range students {
		out[i] = s.ID
	}
	return out
}

func TestSortScenario(t *testing.T) {
	store := []model.Student{
		{ID: "b", Name: "Bob", Roll: "S2", CGPA: model.Float(7.0)},
		{ID: "a", Name: "Amy", Roll: "S1", CGPA: model.Float(9.0)},
	}

	byName := BuildView(store, Query{Sort: SortByName}, 6)
	assert.Equal(t, []string{"Amy", "Bob"}, names(byName.Items))

	byCGPA := BuildView(store, Query{Sort: SortByCGPA}, 6)
	assert.Equal(t, []string{"Amy", "Bob"}, names(byCGPA.Items))

	assert.Equal(t, []string{"b", "a"}, ids(store), "stored order must not change")
}

func TestFilter(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"1", "2", "3", "4", "5", "6", "7", "8"}},
		{"   ", []string{"1", "2", "3", "4", "5", "6", "7", "8"}},
		{"cse", []string{"2", "4", "7"}},
		{"  CSE ", []string{"2", "4", "7"}},
		{"s1", []string{"2", "3"}},
		{"CARL", []string{"3"}},
		{"émile", []string{"5"}},
		{"nobody", []string{}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.query), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(sampleStudents(), tt.query)))
		})
	}
}

func TestFilterIsSubset(t *testing.T) {
	all := sampleStudents()
	byID := make(map[string]model.Student)
	for _, s := range all {
		byID[s.ID] = s
	}

	for _, q := range []string{"a", "S", "ce", "9", "e", "zz"} {
		needle := strings.ToLower(q)
		for _, s := range Filter(all, q) {
			orig, ok := byID[s.ID]
			require.True(t, ok)
			assert.Equal(t, orig, s)
			assert.True(t,
				strings.Contains(strings.ToLower(s.Name), needle) ||
					strings.Contains(strings.ToLower(s.Roll), needle) ||
					strings.Contains(strings.ToLower(s.Branch), needle),
				"%q does not match %+v", q, s)
		}
	}
}

func TestSortByCGPA(t *testing.T) {
	students := sampleStudents()
	Sort(students, SortByCGPA)

	for i := 1; i < len(students); i++ {
		assert.GreaterOrEqual(t, students[i-1].CGPAValue(), students[i].CGPAValue())
	}
	// ties keep stored order; unset and zero cgpa both count as 0
	assert.Equal(t, []string{"2", "7", "5", "1", "8", "3", "4", "6"}, ids(students))
}

func TestSortByText(t *testing.T) {
	col := collate.New(language.Und)

	for _, key := range []SortKey{SortByName, SortByRoll} {
		t.Run(string(key), func(t *testing.T) {
			students := sampleStudents()
			Sort(students, key)

			field := func(s model.Student) string {
				if key == SortByRoll {
					return s.Roll
				}
				return s.Name
			}
			for i := 1; i < len(students); i++ {
				assert.LessOrEqual(t, col.CompareString(field(students[i-1]), field(students[i])), 0)
			}
		})
	}
}

func TestSortByNameIsLocaleAware(t *testing.T) {
	students := sampleStudents()
	Sort(students, SortByName)

	// empty first, case-insensitive at the primary level, accents next to their base letter
	assert.Equal(t, []string{"", "Amy", "Ana", "Bob", "carl", "Dana", "Émile", "Zoe"}, names(students))
}

func TestPagination(t *testing.T) {
	all := sampleStudents()

	t.Run("pages cover the filtered set once", func(t *testing.T) {
		for _, size := range []int{1, 3, 6, 8, 20} {
			first := BuildView(all, Query{Sort: SortByRoll, Page: 1}, size)

			var joined []model.Student
			for page := 1; page <= first.TotalPages; page++ {
				view := BuildView(all, Query{Sort: SortByRoll, Page: page}, size)
				assert.Equal(t, page, view.Page)
				assert.LessOrEqual(t, len(view.Items), size)
				joined = append(joined, view.Items...)
			}

			expected := Filter(all, "")
			Sort(expected, SortByRoll)
			assert.Equal(t, ids(expected), ids(joined), "page size %d", size)
			assert.Equal(t, (len(all)+size-1)/size, first.TotalPages)
		}
	})

	t.Run("empty result has one page", func(t *testing.T) {
		view := BuildView(all, Query{Text: "nobody", Page: 3}, 6)
		assert.Equal(t, 1, view.TotalPages)
		assert.Equal(t, 1, view.Page)
		assert.Equal(t, 0, view.Total)
		assert.NotNil(t, view.Items)
		assert.Empty(t, view.Items)
	})

	t.Run("page past the end is clamped", func(t *testing.T) {
		view := BuildView(all, Query{Page: 99}, 3)
		assert.Equal(t, 3, view.TotalPages)
		assert.Equal(t, 3, view.Page)
		assert.Len(t, view.Items, 2)
	})

	t.Run("page below one becomes one", func(t *testing.T) {
		view := BuildView(all, Query{Page: -4}, 3)
		assert.Equal(t, 1, view.Page)
		assert.Len(t, view.Items, 3)
	})

	t.Run("defaults", func(t *testing.T) {
		view := BuildView(all, Query{}, 0)
		assert.Equal(t, DefaultPageSize, view.PageSize)
		assert.Equal(t, SortByName, view.Sort)
		assert.Equal(t, 8, view.Total)
		assert.Equal(t, 2, view.TotalPages)
	})
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		in      string
		want    SortKey
		wantErr bool
	}{
		{"", SortByName, false},
		{"name", SortByName, false},
		{"roll", SortByRoll, false},
		{" CGPA ", SortByCGPA, false},
		{"email", "", true},
	}

	for _, tt := range tests {
		got, err := ParseSortKey(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
