// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package bq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const testProject = "test-project"

// fakeBigQuery serves the slice of the BigQuery v2 REST API the wrappers use:
// dataset insert/delete, table insert/get/delete, and jobs insert/get.
// Jobs finish on their first status check.
type fakeBigQuery struct {
	mu sync.Mutex

	datasets map[string]bool
	tables   map[string]map[string]any
	jobs     map[string]map[string]any

	// jobFailure, when set, is the message every job fails with.
	jobFailure string
	// detectedSchema is written to the destination of autodetect loads.
	detectedSchema []map[string]any
	// denyWrites answers every insert and delete with 403.
	denyWrites bool

	requests []string
	jobGets  int
}

func newFakeBigQuery(t *testing.T) (*fakeBigQuery, *bigquery.Client) {
	t.Helper()
	f := &fakeBigQuery{
		datasets: map[string]bool{},
		tables:   map[string]map[string]any{},
		jobs:     map[string]map[string]any{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	client, err := bigquery.NewClient(context.Background(), testProject,
		option.WithEndpoint(srv.URL+"/bigquery/v2/"),
		option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return f, client
}

func (f *fakeBigQuery) addTable(dataset, table string, fields ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.datasets[dataset] = true
	t := map[string]any{
		"tableReference": map[string]any{"projectId": testProject, "datasetId": dataset, "tableId": table},
	}
	if len(fields) > 0 {
		t["schema"] = map[string]any{"fields": fields}
	}
	f.tables[dataset+"."+table] = t
}

func (f *fakeBigQuery) hasTable(dataset, table string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.tables[dataset+"."+table]
	return ok
}

func (f *fakeBigQuery) seen(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeBigQuery) jobGetCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobGets
}

func writeAPIError(w http.ResponseWriter, code int, reason, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
			"errors":  []map[string]any{{"reason": reason, "message": msg}},
		},
	})
}

func writeResource(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func nested(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		next, ok := m[k].(map[string]any)
		if !ok {
			return nil
		}
		m = next
	}
	return m
}

func (f *fakeBigQuery) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := strings.Index(r.URL.Path, "/projects/")
	if i < 0 {
		writeAPIError(w, http.StatusNotFound, "notFound", "unknown path "+r.URL.Path)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path[i+len("/projects/"):], "/"), "/")[1:]
	f.requests = append(f.requests, r.Method+" "+strings.Join(parts, "/"))

	var body map[string]any
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid", err.Error())
			return
		}
	}
	if f.denyWrites && r.Method != http.MethodGet {
		writeAPIError(w, http.StatusForbidden, "accessDenied", "Access Denied: permission bigquery.datasets.create denied")
		return
	}

	switch {
	case len(parts) == 1 && parts[0] == "datasets" && r.Method == http.MethodPost:
		id, _ := nested(body, "datasetReference")["datasetId"].(string)
		if f.datasets[id] {
			writeAPIError(w, http.StatusConflict, "duplicate", "Already Exists: Dataset "+id)
			return
		}
		f.datasets[id] = true
		writeResource(w, body)

	case len(parts) == 2 && parts[0] == "datasets" && r.Method == http.MethodDelete:
		if !f.datasets[parts[1]] {
			writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Dataset "+parts[1])
			return
		}
		delete(f.datasets, parts[1])
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 3 && parts[2] == "tables" && r.Method == http.MethodPost:
		id, _ := nested(body, "tableReference")["tableId"].(string)
		key := parts[1] + "." + id
		if _, ok := f.tables[key]; ok {
			writeAPIError(w, http.StatusConflict, "duplicate", "Already Exists: Table "+key)
			return
		}
		f.tables[key] = body
		writeResource(w, body)

	case len(parts) == 4 && parts[2] == "tables" && r.Method == http.MethodGet:
		t, ok := f.tables[parts[1]+"."+parts[3]]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Table "+parts[1]+"."+parts[3])
			return
		}
		writeResource(w, t)

	case len(parts) == 4 && parts[2] == "tables" && r.Method == http.MethodDelete:
		key := parts[1] + "." + parts[3]
		if _, ok := f.tables[key]; !ok {
			writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Table "+key)
			return
		}
		delete(f.tables, key)
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 1 && parts[0] == "jobs" && r.Method == http.MethodPost:
		ref := nested(body, "jobReference")
		if ref == nil {
			ref = map[string]any{"projectId": testProject}
			body["jobReference"] = ref
		}
		ref["location"] = "US"
		id, _ := ref["jobId"].(string)
		body["status"] = map[string]any{"state": "RUNNING"}
		f.jobs[id] = body
		writeResource(w, body)

	case len(parts) == 2 && parts[0] == "jobs" && r.Method == http.MethodGet:
		f.jobGets++
		job, ok := f.jobs[parts[1]]
		if !ok {
			writeAPIError(w, http.StatusNotFound, "notFound", "Not found: Job "+parts[1])
			return
		}
		f.finish(job)
		writeResource(w, job)

	default:
		writeAPIError(w, http.StatusNotFound, "notFound", "unsupported "+r.Method+" "+r.URL.Path)
	}
}

// finish marks job done, applying detectedSchema to autodetect loads.
func (f *fakeBigQuery) finish(job map[string]any) {
	status := map[string]any{"state": "DONE"}
	if f.jobFailure != "" {
		e := map[string]any{"reason": "invalid", "location": "gs://in/rows.json", "message": f.jobFailure}
		status["errorResult"] = e
		status["errors"] = []map[string]any{e}
		job["status"] = status
		return
	}
	job["status"] = status

	load := nested(job, "configuration", "load")
	if load == nil {
		return
	}
	job["statistics"] = map[string]any{
		"load": map[string]any{
			"inputFiles":     "1",
			"inputFileBytes": "42",
			"outputRows":     "3",
			"outputBytes":    "64",
		},
	}
	if auto, _ := load["autodetect"].(bool); auto && f.detectedSchema != nil {
		dest := nested(load, "destinationTable")
		ds, _ := dest["datasetId"].(string)
		tbl, _ := dest["tableId"].(string)
		if t, ok := f.tables[ds+"."+tbl]; ok {
			t["schema"] = map[string]any{"fields": f.detectedSchema}
		}
	}
}
