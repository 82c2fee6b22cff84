package model

import "time"

// Job is a scraped job posting tagged with the hashes of the filters that produced it.
// Jobs are written by the ingestion tool and are read-only for the API.
type Job struct {
	ID           string    `json:"id"`
	Site         string    `json:"site"`
	JobURL       string    `json:"jobUrl"`
	JobURLDirect string    `json:"jobUrlDirect"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	Description  string    `json:"description"`
	SearchHashes []string  `json:"searchHashes"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MatchesAny reports whether the job was produced by any of the given hashes.
func (j *Job) MatchesAny(hashes map[string]struct{}) bool {
	for _, h := range j.SearchHashes {
		if _, ok := hashes[h]; ok {
			return true
		}
	}
	return false
}
