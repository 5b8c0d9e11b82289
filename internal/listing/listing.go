// Package listing filters, sorts and paginates fetched collections on the
// client. Server-side pagination is never trusted.
package listing

import (
	"sort"
	"strings"
	"time"

	"fivew2h/internal/domain"
)

// AllStatuses disables the status filter. It is never a real status value.
const AllStatuses = -1

// DefaultPageSize matches the page size of the list views.
const DefaultPageSize = 10

// Query selects one page of a collection.
type Query struct {
	Search     string
	Status     int
	PageNumber int
	PageSize   int
}

// NewQuery returns the first page with no filters.
func NewQuery() Query {
	return Query{Status: AllStatuses, PageNumber: 1, PageSize: DefaultPageSize}
}

// Result is one visible page. PageNumber is the page actually shown after
// clamping.
type Result[T any] struct {
	Items      []T
	TotalPages int
	PageNumber int
	Matched    int
}

// Fields tells Page how to read an item. Nil accessors switch the matching
// step off.
type Fields[T any] struct {
	Deleted   func(T) bool
	Status    func(T) int
	CreatedAt func(T) time.Time
	Text      func(T) []string
}

// Page drops deleted items, applies the search and status filters, sorts by
// creation time descending and slices out the requested page. Out of range
// page numbers are clamped.
func Page[T any](items []T, q Query, f Fields[T]) Result[T] {
	size := q.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))

	kept := make([]T, 0, len(items))
	for _, it := range items {
		if f.Deleted != nil && f.Deleted(it) {
			continue
		}
		if q.Status != AllStatuses && f.Status != nil && f.Status(it) != q.Status {
			continue
		}
		if term != "" && f.Text != nil && !matches(f.Text(it), term) {
			continue
		}
		kept = append(kept, it)
	}
	if f.CreatedAt != nil {
		sortNewestFirst(kept, f.CreatedAt)
	}

	total := (len(kept) + size - 1) / size
	page := q.PageNumber
	if page < 1 {
		page = 1
	}
	if total > 0 && page > total {
		page = total
	}
	start := (page - 1) * size
	end := start + size
	if start > len(kept) {
		start = len(kept)
	}
	if end > len(kept) {
		end = len(kept)
	}
	return Result[T]{Items: kept[start:end], TotalPages: total, PageNumber: page, Matched: len(kept)}
}

func matches(fields []string, term string) bool {
	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

// sortNewestFirst orders items by descending creation time. Items without a
// timestamp keep their relative order after the dated ones.
func sortNewestFirst[T any](items []T, created func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := created(items[i]), created(items[j])
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
}

// ProjectFields reads projects.
var ProjectFields = Fields[domain.Project]{
	Deleted:   func(p domain.Project) bool { return p.IsDeleted },
	Status:    func(p domain.Project) int { return int(p.Status) },
	CreatedAt: func(p domain.Project) time.Time { return p.CreatedAt.Time },
	Text: func(p domain.Project) []string {
		return []string{p.Title, p.Description, p.Origin}
	},
}

// ActionFields reads actions.
var ActionFields = Fields[domain.Action]{
	Deleted:   func(a domain.Action) bool { return a.IsDeleted },
	Status:    func(a domain.Action) int { return int(a.Status) },
	CreatedAt: func(a domain.Action) time.Time { return a.CreatedAt.Time },
	Text: func(a domain.Action) []string {
		return []string{a.Title, a.What, a.Who}
	},
}

// UserFields reads users. Users carry no status or creation time.
var UserFields = Fields[domain.User]{
	Deleted: func(u domain.User) bool { return u.IsDeleted },
	Text: func(u domain.User) []string {
		return []string{u.FullName, u.Email, string(u.Role)}
	},
}

// DepartmentFields reads departments.
var DepartmentFields = Fields[domain.Department]{
	Deleted: func(d domain.Department) bool { return d.IsDeleted },
	Text:    func(d domain.Department) []string { return []string{d.Name} },
}

// Active drops soft-deleted items without paginating.
func Active[T any](items []T, deleted func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if !deleted(it) {
			out = append(out, it)
		}
	}
	return out
}

// Newest returns at most n non-deleted items, newest first.
func Newest[T any](items []T, n int, f Fields[T]) []T {
	q := NewQuery()
	q.PageSize = n
	if n <= 0 {
		return []T{}
	}
	return Page(items, q, f).Items
}
