package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jobsift/jobsift/internal/model"
)

// ErrInvalidInput is wrapped by every ValidationError.
var ErrInvalidInput = errors.New("invalid input")

// maxFieldLength caps free-text request fields.
const maxFieldLength = 256

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func checkLength(field, value string) error {
	if len(value) > maxFieldLength {
		return invalid(field, fmt.Sprintf("must be at most %d characters", maxFieldLength))
	}
	return nil
}

// buildDefinition validates the request and applies the fixed search defaults.
func buildDefinition(input AddFilterInput) (model.FilterDefinition, string, error) {
	if len(input.SiteNames) == 0 {
		return model.FilterDefinition{}, "", invalid("siteName", "must list at least one site")
	}

	sites := make([]model.SiteName, 0, len(input.SiteNames))
	for _, raw := range input.SiteNames {
		site, err := model.ParseSiteName(raw)
		if err != nil {
			return model.FilterDefinition{}, "", invalid("siteName", fmt.Sprintf("has unknown site %q (valid: %s)", raw, validSiteList()))
		}
		sites = append(sites, site)
	}

	keywords := strings.TrimSpace(input.Keywords)
	if keywords == "" {
		return model.FilterDefinition{}, "", invalid("keywords", "is required")
	}
	if err := checkLength("keywords", keywords); err != nil {
		return model.FilterDefinition{}, "", err
	}

	state := strings.TrimSpace(input.State)
	if state == "" {
		return model.FilterDefinition{}, "", invalid("state", "is required")
	}
	if err := checkLength("state", state); err != nil {
		return model.FilterDefinition{}, "", err
	}

	experience := strings.TrimSpace(input.Experience)
	if experience == "" {
		experience = model.DefaultExperience
	}
	if err := checkLength("experience", experience); err != nil {
		return model.FilterDefinition{}, "", err
	}

	def := model.FilterDefinition{
		SiteNames:     sites,
		SearchTerm:    keywords,
		Location:      state,
		ResultsWanted: model.DefaultResultsWanted,
		HoursOld:      model.DefaultHoursOld,
		Country:       model.DefaultCountry,
	}

	return def, experience, nil
}

func validSiteList() string {
	names := make([]string, len(model.ValidSiteNames))
	for i, s := range model.ValidSiteNames {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
