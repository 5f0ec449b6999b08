// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/kpideck/kpideck/internal/models"
)

// learningClient talks to a Cademi-compatible learning platform API. Auth is
// a bearer token.
type learningClient struct {
	core     *httpCore
	cb       *gobreaker.CircuitBreaker[interface{}]
	baseURL  string
	apiToken string
}

// NewLearningClient builds a learning platform client for one tenant's
// credentials. Required keys: base_url, api_token.
func NewLearningClient(tenant string, tenantID *int64, creds models.Credentials, tracker StatusTracker) (LearningClient, error) {
	if !creds.Has("base_url", "api_token") {
		return nil, &models.SourceNotConfiguredError{Source: SourceLearning, Tenant: tenant}
	}
	return &learningClient{
		core:     newHTTPCore(SourceLearning, tenant, tenantID, tracker),
		cb:       newBreaker(SourceLearning, tenant),
		baseURL:  creds.Get("base_url"),
		apiToken: creds.Get("api_token"),
	}, nil
}

type learningStudentWire struct {
	ID           int64   `json:"id"`
	Email        string  `json:"email"`
	EnrolledAt   string  `json:"enrolled_at"` // RFC3339
	LastAccessAt *string `json:"last_access_at"`
	Progress     float64 `json:"progress"` // 0..100
}

type learningStudentsResponse struct {
	Data  []learningStudentWire `json:"data"`
	Total int                   `json:"total"`
}

type learningCoursesResponse struct {
	Data []struct {
		ID        int64  `json:"id"`
		Title     string `json:"title"`
		Published bool   `json:"published"`
	} `json:"data"`
}

func (c *learningClient) get(ctx context.Context, path, endpoint string, params url.Values, out interface{}) error {
	q := ""
	if params != nil {
		q = "?" + params.Encode()
	}
	return c.core.doJSON(ctx, request{
		method:   http.MethodGet,
		url:      fmt.Sprintf("%s/api/v1%s%s", c.baseURL, path, q),
		headers:  map[string]string{"Authorization": "Bearer " + c.apiToken},
		endpoint: endpoint,
	}, out)
}

func (c *learningClient) Ping(ctx context.Context) error {
	_, err := executeBreaker(c.cb, func() (*struct{}, error) {
		var resp learningCoursesResponse
		err := c.get(ctx, "/courses", "ping", nil, &resp)
		return &struct{}{}, err
	})
	return err
}

// LearningStats aggregates enrollment and progress over the period. Active
// means a last access inside the range; completion rate averages progress
// across the whole base.
func (c *learningClient) LearningStats(ctx context.Context, r models.DateRange) (*LearningStats, error) {
	return executeBreaker(c.cb, func() (*LearningStats, error) {
		var students learningStudentsResponse
		if err := c.get(ctx, "/students", "students", nil, &students); err != nil {
			return nil, err
		}

		var courses learningCoursesResponse
		if err := c.get(ctx, "/courses", "courses", nil, &courses); err != nil {
			return nil, err
		}

		stats := &LearningStats{}
		var progressSum float64
		for _, s := range students.Data {
			progressSum += s.Progress
			if enrolled, err := time.Parse(time.RFC3339, s.EnrolledAt); err == nil && r.Contains(enrolled) {
				stats.NewEnrollments++
			}
			if s.LastAccessAt != nil {
				if access, err := time.Parse(time.RFC3339, *s.LastAccessAt); err == nil && r.Contains(access) {
					stats.ActiveStudents++
				}
			}
		}
		if len(students.Data) > 0 {
			stats.CompletionRate = progressSum / float64(len(students.Data))
		}
		for _, course := range courses.Data {
			if course.Published {
				stats.CoursesPublished++
			}
		}
		return stats, nil
	})
}
