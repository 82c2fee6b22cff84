package model

import "fmt"

// StarterFilterVersionV1 is the first starter search handed to new users.
const StarterFilterVersionV1 = "v1"

// StarterFilters lists every starter search by version. Entries are never
// edited in place: a changed starter search gets a new version so that users
// registered earlier keep pointing at the record they were seeded with.
var StarterFilters = map[string]StarterFilterSpec{
	StarterFilterVersionV1: {
		Definition: FilterDefinition{
			SiteNames:     []SiteName{SiteIndeed, SiteLinkedIn},
			SearchTerm:    "software engineer",
			Location:      "United States",
			ResultsWanted: DefaultResultsWanted,
			HoursOld:      DefaultHoursOld,
			Country:       DefaultCountry,
		},
		Experience: "Entry level",
	},
}

// StarterFilterSpec is a starter search plus its display-only experience label.
type StarterFilterSpec struct {
	Definition FilterDefinition
	Experience string
}

// StarterFilter returns a copy of the starter search for version.
func StarterFilter(version string) (StarterFilterSpec, error) {
	spec, ok := StarterFilters[version]
	if !ok {
		return StarterFilterSpec{}, fmt.Errorf("unknown starter filter version %q", version)
	}
	spec.Definition.SiteNames = append([]SiteName(nil), spec.Definition.SiteNames...)
	return spec, nil
}
