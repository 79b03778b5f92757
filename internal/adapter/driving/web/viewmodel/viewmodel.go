// Package viewmodel defines presentation-ready structs for the templ templates.
// View models decouple rendering from domain model types.
package viewmodel

// FeedPageViewModel holds everything the feed page renders.
type FeedPageViewModel struct {
	Title          string
	RefreshSeconds int
	SchedulerState string
	CSRFToken      string
	Flash          string
	Items          []FeedItemViewModel
	Repos          []RepoViewModel
}

// FeedItemViewModel holds presentation-ready data for one feed row.
// TitleHTML is sanitized inline markdown.
type FeedItemViewModel struct {
	Type        string
	Icon        string
	RepoID      string
	DisplayName string
	Actor       string
	TitleHTML   string
	URL         string
	Extra       string
	When        string
	Ago         string
	ShortSHA    string
	Stats       *StatsViewModel
	Review      *ReviewViewModel
}

// StatsViewModel holds the size badge for a commit row.
type StatsViewModel struct {
	Additions    int
	Deletions    int
	FilesChanged int
}

// ReviewViewModel holds the review badge and its expandable details. The
// HTML fields are sanitized before they reach the templates.
type ReviewViewModel struct {
	Grade           string
	Badge           string
	BadgeClass      string
	Score           int
	SummaryHTML     string
	RisksHTML       []string
	SuggestionsHTML []string
	Model           string
}

// RepoViewModel holds presentation-ready data for a repository in the sidebar.
type RepoViewModel struct {
	ID          string
	DisplayName string
	URL         string
	Stars       int
	Events      int
	Activity    string
	RefreshPath string
}
