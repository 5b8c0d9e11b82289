package listing_test

import (
	"fmt"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"fivew2h/internal/domain"
	"fivew2h/internal/listing"
)

func projectsFixture() []domain.Project {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var out []domain.Project
	for i := 1; i <= 25; i++ {
		out = append(out, domain.Project{
			ID:        domain.ID(fmt.Sprint(i)),
			Title:     fmt.Sprintf("Project %02d", i),
			Status:    domain.ProjectStatus(i % 5),
			CreatedAt: domain.NewTimestamp(base.Add(time.Duration(i) * time.Hour)),
			IsDeleted: i%7 == 0,
		})
	}
	return out
}

func ids(ps []domain.Project) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID.String())
	}
	return out
}

func TestPage(t *testing.T) {
	RegisterTestingT(t)

	t.Run("deleted items never appear", func(t *testing.T) {
		items := projectsFixture()
		for _, q := range []listing.Query{
			listing.NewQuery(),
			{Status: listing.AllStatuses, PageNumber: 2, PageSize: 5},
			{Search: "project", Status: 0, PageNumber: 1, PageSize: 100},
			{Search: "07", Status: listing.AllStatuses, PageNumber: 1, PageSize: 100},
		} {
			r := listing.Page(items, q, listing.ProjectFields)
			for _, p := range r.Items {
				Expect(p.IsDeleted).To(BeFalse())
			}
		}
		r := listing.Page(items, listing.Query{Search: "07", Status: listing.AllStatuses, PageSize: 10}, listing.ProjectFields)
		Expect(r.Items).To(BeEmpty())
	})

	t.Run("status sentinel equals no filter", func(t *testing.T) {
		items := projectsFixture()
		all := listing.Page(items, listing.Query{Status: listing.AllStatuses, PageSize: 100}, listing.ProjectFields)
		unfiltered := listing.Page(items, listing.Query{Status: listing.AllStatuses, PageSize: 100}, listing.Fields[domain.Project]{
			Deleted:   listing.ProjectFields.Deleted,
			CreatedAt: listing.ProjectFields.CreatedAt,
		})
		Expect(ids(all.Items)).To(Equal(ids(unfiltered.Items)))
		Expect(all.Matched).To(Equal(22))
	})

	t.Run("status zero is a real filter", func(t *testing.T) {
		r := listing.Page(projectsFixture(), listing.Query{Status: int(domain.ProjectCreated), PageSize: 100}, listing.ProjectFields)
		Expect(r.Items).NotTo(BeEmpty())
		for _, p := range r.Items {
			Expect(p.Status).To(Equal(domain.ProjectCreated))
		}
	})

	t.Run("newest first", func(t *testing.T) {
		r := listing.Page(projectsFixture(), listing.NewQuery(), listing.ProjectFields)
		Expect(ids(r.Items)[:3]).To(Equal([]string{"25", "24", "23"}))
		Expect(r.TotalPages).To(Equal(3))
	})

	t.Run("page beyond the end is clamped", func(t *testing.T) {
		q := listing.NewQuery()
		q.PageNumber = 99
		r := listing.Page(projectsFixture(), q, listing.ProjectFields)
		Expect(r.PageNumber).To(Equal(3))
		Expect(r.Items).To(HaveLen(2))

		q.PageNumber = -4
		r = listing.Page(projectsFixture(), q, listing.ProjectFields)
		Expect(r.PageNumber).To(Equal(1))
	})

	t.Run("empty input yields no pages", func(t *testing.T) {
		q := listing.NewQuery()
		q.PageNumber = 3
		r := listing.Page([]domain.Project{}, q, listing.ProjectFields)
		Expect(r.Items).To(BeEmpty())
		Expect(r.TotalPages).To(Equal(0))
		Expect(r.PageNumber).To(Equal(1))
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		q := listing.NewQuery()
		q.Search = "  PROJECT 1"
		r := listing.Page(projectsFixture(), q, listing.ProjectFields)
		Expect(r.Matched).To(Equal(9))
	})

	t.Run("undated items keep server order after dated ones", func(t *testing.T) {
		items := []domain.Project{
			{ID: "a"},
			{ID: "b", CreatedAt: domain.NewTimestamp(time.Unix(100, 0))},
			{ID: "c"},
			{ID: "d", CreatedAt: domain.NewTimestamp(time.Unix(200, 0))},
		}
		r := listing.Page(items, listing.NewQuery(), listing.ProjectFields)
		Expect(ids(r.Items)).To(Equal([]string{"d", "b", "a", "c"}))
	})

	t.Run("users without status ignore the status filter", func(t *testing.T) {
		users := []domain.User{{ID: "1", FullName: "Ana"}, {ID: "2", FullName: "Bia", IsDeleted: true}}
		r := listing.Page(users, listing.Query{Status: 3, PageSize: 10}, listing.UserFields)
		Expect(r.Items).To(HaveLen(1))
		Expect(r.Items[0].FullName).To(Equal("Ana"))
	})
}

func TestNewest(t *testing.T) {
	RegisterTestingT(t)

	got := listing.Newest(projectsFixture(), 3, listing.ProjectFields)
	Expect(ids(got)).To(Equal([]string{"25", "24", "23"}))
	Expect(listing.Newest(projectsFixture(), 0, listing.ProjectFields)).To(BeEmpty())
}
