// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/jobsift/jobsift/internal/model"
)

// RegisterUserRequest represents the request body for registering a user.
type RegisterUserRequest struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// SiteNames accepts either a single site name or a list of them.
type SiteNames []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *SiteNames) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = SiteNames{one}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("siteName must be a string or an array of strings")
	}
	*s = many
	return nil
}

// AddFilterRequest represents the request body for attaching a filter.
type AddFilterRequest struct {
	SiteName   SiteNames `json:"siteName"`
	Keywords   string    `json:"keywords"`
	State      string    `json:"state"`
	Experience string    `json:"experience,omitempty"`
}

// AppliedJobResponse represents one application record.
type AppliedJobResponse struct {
	JobID       string    `json:"jobId"`
	DateApplied time.Time `json:"dateApplied"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID           string               `json:"id"`
	UserID       string               `json:"userId"`
	UserName     string               `json:"userName"`
	SearchHashes []string             `json:"searchHashes"`
	AppliedJobs  []AppliedJobResponse `json:"appliedJobs"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

// FilterResponse is the public projection of a filter.
type FilterResponse struct {
	ID          string `json:"id"`
	Keywords    string `json:"keywords"`
	State       string `json:"state"`
	Experience  string `json:"experience"`
	LastUpdated string `json:"lastUpdated"`
}

// JobResponse is the public projection of a job.
type JobResponse struct {
	ID           string `json:"id"`
	JobURLDirect string `json:"jobUrlDirect"`
	JobURL       string `json:"jobUrl"`
	Title        string `json:"title"`
	Company      string `json:"company"`
	Location     string `json:"location"`
	Description  string `json:"description"`
	Site         string `json:"site"`
}

// MessageResponse carries a human-readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToUserResponse converts a User model to UserResponse DTO.
func ToUserResponse(u *model.User) *UserResponse {
	hashes := u.SearchHashes
	if hashes == nil {
		hashes = []string{}
	}
	applied := make([]AppliedJobResponse, len(u.AppliedJobs))
	for i, a := range u.AppliedJobs {
		applied[i] = ToAppliedJobResponse(a)
	}

	return &UserResponse{
		ID:           u.ID,
		UserID:       u.UserID,
		UserName:     u.UserName,
		SearchHashes: hashes,
		AppliedJobs:  applied,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// ToAppliedJobResponse converts an AppliedJob model.
func ToAppliedJobResponse(a model.AppliedJob) AppliedJobResponse {
	return AppliedJobResponse{JobID: a.JobID, DateApplied: a.DateApplied}
}

// ToFilterResponse converts a Filter model to its public projection.
func ToFilterResponse(f *model.Filter) FilterResponse {
	return FilterResponse{
		ID:          f.ID,
		Keywords:    f.SearchTerm,
		State:       f.Location,
		Experience:  f.ExperienceOrDefault(),
		LastUpdated: f.LastUpdated(),
	}
}

// ToFilterResponses converts a slice of filters, never returning nil.
func ToFilterResponses(filters []*model.Filter) []FilterResponse {
	out := make([]FilterResponse, len(filters))
	for i, f := range filters {
		out[i] = ToFilterResponse(f)
	}
	return out
}

// ToJobResponses converts a slice of jobs, never returning nil.
func ToJobResponses(jobs []*model.Job) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = JobResponse{
			ID:           j.ID,
			JobURLDirect: j.JobURLDirect,
			JobURL:       j.JobURL,
			Title:        j.Title,
			Company:      j.Company,
			Location:     j.Location,
			Description:  j.Description,
			Site:         j.Site,
		}
	}
	return out
}
