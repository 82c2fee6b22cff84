// Package filterhash derives the deduplication key for filter definitions.
//
// The key is a lowercase hex SHA-256 over a canonical encoding of the
// definition. Site names are compared as a set, so order and repetition in the
// input never change the key. Experience and scrape timestamps are not part of
// the key.
package filterhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/jobsift/jobsift/internal/model"
)

// Size is the length of a hash in hex characters.
const Size = sha256.Size * 2

// Normalize returns a copy of def with site names trimmed, lowercased,
// deduplicated and sorted.
func Normalize(def model.FilterDefinition) model.FilterDefinition {
	seen := make(map[model.SiteName]struct{}, len(def.SiteNames))
	sites := make([]model.SiteName, 0, len(def.SiteNames))
	for _, s := range def.SiteNames {
		name := model.SiteName(strings.ToLower(strings.TrimSpace(string(s))))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		sites = append(sites, name)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })

	out := def
	out.SiteNames = sites
	return out
}

// Canonical returns the fixed-order encoding that Compute hashes.
// Fields are emitted as a JSON array so that delimiter characters inside a
// field are escaped and cannot shift field boundaries.
func Canonical(def model.FilterDefinition) []byte {
	n := Normalize(def)
	sites := make([]string, len(n.SiteNames))
	for i, s := range n.SiteNames {
		sites[i] = string(s)
	}

	// Marshalling strings, ints and a string slice cannot fail.
	b, _ := json.Marshal([]any{
		sites,
		n.SearchTerm,
		n.Location,
		n.ResultsWanted,
		n.HoursOld,
		n.Country,
	})
	return b
}

// Compute returns the deduplication hash of def.
func Compute(def model.FilterDefinition) string {
	sum := sha256.Sum256(Canonical(def))
	return hex.EncodeToString(sum[:])
}

// IsValid reports whether s looks like a hash produced by Compute.
func IsValid(s string) bool {
	if len(s) != Size {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
