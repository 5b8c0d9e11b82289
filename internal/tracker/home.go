package tracker

import (
	"context"
	"fmt"

	"fivew2h/internal/domain"
	"fivew2h/internal/listing"
	w2hsdk "fivew2h/sdk/go"
)

const (
	recentProjects = 3
	recentActions  = 5
	unknownUser    = "Unknown user"
	unknownProject = "Unknown project"
)

// FeedLine is one entry of the home activity feed.
type FeedLine struct {
	Action domain.Action `json:"action"`
	Text   string        `json:"text"`
}

// Dashboard is the home page.
type Dashboard struct {
	Projects       int              `json:"projects"`
	Users          int              `json:"users"`
	Actions        int              `json:"actions"`
	RecentProjects []domain.Project `json:"recentProjects"`
	RecentActions  []FeedLine       `json:"recentActions"`
}

// Home gathers the dashboard counts, the newest projects and the newest
// actions. Soft-deleted records are not counted.
func (t *Tracker) Home(ctx context.Context) (Dashboard, error) {
	projects, err := t.fetchProjects(ctx, func(params w2hsdk.ListParams) (w2hsdk.Page[domain.Project], error) {
		return t.API.ListProjects(ctx, params)
	})
	if err != nil {
		return Dashboard{}, t.check(ctx, err)
	}
	users, err := t.API.ListUsers(ctx)
	if err != nil {
		return Dashboard{}, t.check(ctx, err)
	}
	actions, err := t.API.ListActions(ctx)
	if err != nil {
		return Dashboard{}, t.check(ctx, err)
	}

	liveProjects := listing.Active(projects, listing.ProjectFields.Deleted)
	liveUsers := listing.Active(users, listing.UserFields.Deleted)
	liveActions := listing.Active(actions, listing.ActionFields.Deleted)

	names := make(map[domain.ID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	titles := make(map[domain.ID]string, len(projects))
	for _, p := range projects {
		titles[p.ID] = p.Title
	}

	d := Dashboard{
		Projects:       len(liveProjects),
		Users:          len(liveUsers),
		Actions:        len(liveActions),
		RecentProjects: listing.Newest(liveProjects, recentProjects, listing.ProjectFields),
	}
	for _, a := range listing.Newest(liveActions, recentActions, listing.ActionFields) {
		d.RecentActions = append(d.RecentActions, FeedLine{Action: a, Text: feedText(a, names, titles)})
	}
	return d, nil
}

func feedText(a domain.Action, names, titles map[domain.ID]string) string {
	who, ok := names[a.UserID]
	if !ok || who == "" {
		who = unknownUser
	}
	title, ok := titles[a.ProjectID]
	if !ok || title == "" {
		title = unknownProject
	}
	return fmt.Sprintf("%s added an action to project %s", who, title)
}
