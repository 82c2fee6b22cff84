// Package model defines domain entities for the application.
package model

import "time"

// AppliedJob records that a user marked a job as applied.
type AppliedJob struct {
	JobID       string    `json:"jobId"`
	DateApplied time.Time `json:"dateApplied"`
}

// User is a registered job seeker.
// SearchHashes references shared Filter records by their DocumentHash.
type User struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	UserName     string       `json:"userName"`
	SearchHashes []string     `json:"searchHashes"`
	AppliedJobs  []AppliedJob `json:"appliedJobs"`
	Version      int64        `json:"-"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// HasSearchHash reports whether the user already references the filter hash.
func (u *User) HasSearchHash(hash string) bool {
	for _, h := range u.SearchHashes {
		if h == hash {
			return true
		}
	}
	return false
}

// RemoveSearchHash drops every occurrence of hash from the user's list.
// It returns false if the hash was not referenced.
func (u *User) RemoveSearchHash(hash string) bool {
	kept := make([]string, 0, len(u.SearchHashes))
	for _, h := range u.SearchHashes {
		if h != hash {
			kept = append(kept, h)
		}
	}
	removed := len(kept) != len(u.SearchHashes)
	u.SearchHashes = kept
	return removed
}

// AppliedJobIDs returns the set of job IDs the user has applied to.
func (u *User) AppliedJobIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(u.AppliedJobs))
	for _, a := range u.AppliedJobs {
		ids[a.JobID] = struct{}{}
	}
	return ids
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	c := *u
	c.SearchHashes = append([]string(nil), u.SearchHashes...)
	c.AppliedJobs = append([]AppliedJob(nil), u.AppliedJobs...)
	return &c
}
