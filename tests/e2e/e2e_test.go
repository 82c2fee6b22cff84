//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jobsift/jobsift/internal/jobfeed"
	"github.com/jobsift/jobsift/internal/model"
)

type userResponse struct {
	UserID       string   `json:"userId"`
	SearchHashes []string `json:"searchHashes"`
	AppliedJobs  []struct {
		JobID string `json:"jobId"`
	} `json:"appliedJobs"`
}

type filterResponse struct {
	ID       string `json:"id"`
	Keywords string `json:"keywords"`
}

type jobResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestE2ESmoke(t *testing.T) {
	baseURL := envOrDefault("JOBSIFT_BASE_URL", "http://localhost:8080")
	feedURL := envOrDefault("JOB_FEED_DATABASE_URL", os.Getenv("DATABASE_URL"))
	if feedURL == "" {
		t.Fatalf("DATABASE_URL is required for e2e tests")
	}

	userID := fmt.Sprintf("e2e-%d", time.Now().UnixNano())

	var user userResponse
	if status := doJSON(t, http.MethodPost, baseURL+"/user", map[string]any{
		"userId":   userID,
		"userName": "E2E User",
	}, &user); status != http.StatusCreated {
		t.Fatalf("expected 201 from register, got %d", status)
	}
	if len(user.SearchHashes) != 1 {
		t.Fatalf("expected starter filter attached, got %v", user.SearchHashes)
	}

	keywords := fmt.Sprintf("e2e engineer %d", time.Now().UnixNano())
	var filter filterResponse
	if status := doJSON(t, http.MethodPost, baseURL+"/user/filters?userId="+userID, map[string]any{
		"siteName": []string{"linkedin", "indeed"},
		"keywords": keywords,
		"state":    "NY",
	}, &filter); status != http.StatusCreated {
		t.Fatalf("expected 201 from add filter, got %d", status)
	}

	var dup errorResponse
	if status := doJSON(t, http.MethodPost, baseURL+"/user/filters?userId="+userID, map[string]any{
		"siteName": []string{"indeed", "LinkedIn"},
		"keywords": keywords,
		"state":    "NY",
	}, &dup); status != http.StatusConflict || dup.Code != "DUPLICATE_FILTER" {
		t.Fatalf("expected 409 DUPLICATE_FILTER, got %d %s", status, dup.Code)
	}

	var filters []filterResponse
	if status := doJSON(t, http.MethodGet, baseURL+"/user/filters?userId="+userID, nil, &filters); status != http.StatusOK {
		t.Fatalf("expected 200 from list filters, got %d", status)
	}
	if len(filters) != 2 {
		t.Fatalf("expected 2 filters, got %d", len(filters))
	}

	if status := doJSON(t, http.MethodGet, baseURL+"/user?userId="+userID, nil, &user); status != http.StatusOK {
		t.Fatalf("expected 200 from get user, got %d", status)
	}
	hash := user.SearchHashes[len(user.SearchHashes)-1]

	first := seedJob(t, feedURL, "E2E first", hash)
	second := seedJob(t, feedURL, "E2E second", hash)

	var jobs []jobResponse
	if status := doJSON(t, http.MethodGet, baseURL+"/user/jobs?userId="+userID, nil, &jobs); status != http.StatusOK {
		t.Fatalf("expected 200 from list jobs, got %d", status)
	}
	if !containsJob(jobs, first) || !containsJob(jobs, second) {
		t.Fatalf("seeded jobs missing from listing: %+v", jobs)
	}

	if status := doJSON(t, http.MethodPost, baseURL+"/user/applied?userId="+userID+"&jobId="+first, nil, nil); status != http.StatusCreated {
		t.Fatalf("expected 201 from mark applied, got %d", status)
	}

	if status := doJSON(t, http.MethodGet, baseURL+"/user/jobs?userId="+userID, nil, &jobs); status != http.StatusOK {
		t.Fatalf("expected 200 from list jobs, got %d", status)
	}
	if containsJob(jobs, first) {
		t.Fatalf("applied job %s still listed", first)
	}
	if !containsJob(jobs, second) {
		t.Fatalf("unapplied job %s missing", second)
	}

	if status := doJSON(t, http.MethodDelete, baseURL+"/user/filters?userId="+userID+"&filterId="+filter.ID, nil, nil); status != http.StatusOK {
		t.Fatalf("expected 200 from remove filter, got %d", status)
	}

	if status := doJSON(t, http.MethodGet, baseURL+"/user/jobs?userId="+userID, nil, &jobs); status != http.StatusOK {
		t.Fatalf("expected 200 from list jobs, got %d", status)
	}
	if containsJob(jobs, second) {
		t.Fatalf("job from detached filter still listed")
	}
}

// TestE2ERateLimiting validates that rate limiting returns 429 with proper headers.
func TestE2ERateLimiting(t *testing.T) {
	baseURL := envOrDefault("JOBSIFT_BASE_URL", "http://localhost:8080")
	burst, err := strconv.Atoi(envOrDefault("RATE_LIMIT_BURST", "40"))
	if err != nil {
		t.Fatalf("RATE_LIMIT_BURST: %v", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	var lastResp *http.Response

	for i := 0; i < burst*2; i++ {
		resp, err := client.Get(baseURL + "/user?userId=e2e-ratelimit")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			lastResp = resp
			break
		}
		resp.Body.Close()
	}

	if lastResp == nil {
		t.Fatalf("expected 429 rate limit after burst, but never hit rate limit")
	}
	defer lastResp.Body.Close()

	if lastResp.Header.Get("X-RateLimit-Limit") == "" {
		t.Error("missing X-RateLimit-Limit header on 429 response")
	}
	if lastResp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429 response")
	}

	var errResp errorResponse
	if err := json.NewDecoder(lastResp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode 429 response: %v", err)
	}
	if errResp.Code != "RATE_LIMITED" {
		t.Errorf("code = %q, want RATE_LIMITED", errResp.Code)
	}

	// Probes stay reachable while the client is limited.
	resp, err := client.Get(baseURL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d while rate limited", resp.StatusCode)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func seedJob(t *testing.T, feedURL, title, hash string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := jobfeed.Open(ctx, feedURL)
	if err != nil {
		t.Fatalf("connect job feed: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	id := ulid.Make().String()
	job := &model.Job{
		ID:           id,
		Site:         string(model.SiteLinkedIn),
		JobURL:       "https://www.linkedin.com/jobs/view/" + id,
		Title:        title,
		Company:      "E2E Corp",
		Location:     "New York, NY",
		SearchHashes: []string{hash},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := jobfeed.NewRepository(db).UpsertJob(ctx, job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job.ID
}

func containsJob(jobs []jobResponse, id string) bool {
	for _, j := range jobs {
		if j.ID == id {
			return true
		}
	}
	return false
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()

	var buf io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		buf = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.ContentLength != 0 {
			t.Fatalf("decode response: %v", err)
		}
	}

	return resp.StatusCode
}
