package model

import (
	"fmt"
	"strings"
	"time"
)

// SiteName identifies a job board the scraper can search.
type SiteName string

const (
	SiteIndeed       SiteName = "indeed"
	SiteLinkedIn     SiteName = "linkedin"
	SiteZipRecruiter SiteName = "zip_recruiter"
	SiteGlassdoor    SiteName = "glassdoor"
)

// ValidSiteNames contains all supported job boards.
var ValidSiteNames = []SiteName{SiteIndeed, SiteLinkedIn, SiteZipRecruiter, SiteGlassdoor}

// ParseSiteName converts a raw site name into a SiteName.
// Matching ignores case and surrounding whitespace.
func ParseSiteName(raw string) (SiteName, error) {
	candidate := SiteName(strings.ToLower(strings.TrimSpace(raw)))
	for _, s := range ValidSiteNames {
		if candidate == s {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown site name %q", raw)
}

// Filter defaults applied to every user-created search.
const (
	DefaultResultsWanted = 20
	DefaultHoursOld      = 12
	DefaultCountry       = "USA"
	DefaultExperience    = "Not specified"

	// AwaitingUpdate is reported for filters the scraper has not run yet.
	AwaitingUpdate = "Await update"
)

// FilterDefinition holds the fields that identify a search.
// Two definitions with equal fields (site names compared as a set)
// describe the same search and share one stored Filter.
type FilterDefinition struct {
	SiteNames     []SiteName `json:"siteNames"`
	SearchTerm    string     `json:"searchTerm"`
	Location      string     `json:"location"`
	ResultsWanted int        `json:"resultsWanted"`
	HoursOld      int        `json:"hoursOld"`
	Country       string     `json:"country"`
}

// Filter is a stored search definition shared by every user that references its hash.
type Filter struct {
	ID string `json:"id"`
	FilterDefinition
	Experience   string     `json:"experience"`
	DocumentHash string     `json:"documentHash"`
	LastRunAt    *time.Time `json:"lastRunAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ExperienceOrDefault returns the experience label shown to users.
func (f *Filter) ExperienceOrDefault() string {
	if strings.TrimSpace(f.Experience) == "" {
		return DefaultExperience
	}
	return f.Experience
}

// LastUpdated returns the last scrape time as RFC 3339, or AwaitingUpdate.
func (f *Filter) LastUpdated() string {
	if f.LastRunAt == nil {
		return AwaitingUpdate
	}
	return f.LastRunAt.UTC().Format(time.RFC3339)
}
