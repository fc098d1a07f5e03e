// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kindred

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/Kindred/services/kindred/discovery"
	"github.com/AleutianAI/Kindred/services/kindred/person"
	"github.com/AleutianAI/Kindred/services/kindred/storage/badgerstore"
	"github.com/AleutianAI/Kindred/services/kindred/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestRouter wires a full stack on an in-memory store: real service,
// real mutator and scanner, no describer.
func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	st, err := badgerstore.NewInMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc := NewService(ServiceConfig{
		Store:  st,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))
	return router
}

// doJSON performs a request as the given caller and decodes the JSON body
// into out (skipped when out is nil).
func doJSON(t *testing.T, router *gin.Engine, method, path, callerID string, body, out any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if callerID != "" {
		req.Header.Set(identityHeader, callerID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if out != nil && w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", w.Body.String(), err)
		}
	}
	return w
}

// createSelf registers the caller and creates their self record, returning
// the new person id.
func createSelf(t *testing.T, router *gin.Engine, callerID, name string) string {
	t.Helper()
	var resp PersonResponse
	w := doJSON(t, router, http.MethodPost, "/v1/kindred/persons", callerID,
		AddPersonRequest{Name: name, Gender: "male"}, &resp)
	if w.Code != http.StatusCreated {
		t.Fatalf("create self: status %d, body %s", w.Code, w.Body.String())
	}
	return resp.Person.ID
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	var resp HealthResponse
	w := doJSON(t, router, http.MethodGet, "/v1/kindred/health", "", nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp.Status != "healthy" || resp.Version != ServiceVersion {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReadyEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	var resp ReadyResponse
	w := doJSON(t, router, http.MethodGet, "/v1/kindred/ready", "", nil, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !resp.Ready || !resp.StoreOK {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMissingIdentityRejected(t *testing.T) {
	router := setupTestRouter(t)

	var resp ErrorResponse
	w := doJSON(t, router, http.MethodGet, "/v1/kindred/tree", "", nil, &resp)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if resp.Code != "UNAUTHENTICATED" {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestCreateSelfAndTree(t *testing.T) {
	router := setupTestRouter(t)

	selfID := createSelf(t, router, "u1", "Asha")

	var tree TreeResponse
	w := doJSON(t, router, http.MethodGet, "/v1/kindred/tree", "u1", nil, &tree)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(tree.Persons) != 1 || tree.Persons[0].ID != selfID {
		t.Errorf("tree = %+v", tree.Persons)
	}

	// A second self is rejected.
	var errResp ErrorResponse
	w = doJSON(t, router, http.MethodPost, "/v1/kindred/persons", "u1",
		AddPersonRequest{Name: "Asha Again"}, &errResp)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("duplicate self: status = %d, want 400", w.Code)
	}
	if errResp.Code != "INVALID_REQUEST" {
		t.Errorf("code = %q", errResp.Code)
	}
}

func TestAddPersonValidation(t *testing.T) {
	router := setupTestRouter(t)
	createSelf(t, router, "u1", "Asha")

	// Missing required name.
	w := doJSON(t, router, http.MethodPost, "/v1/kindred/persons", "u1",
		map[string]string{"relationship": "Father"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing name: status = %d, want 400", w.Code)
	}

	// Unknown anchor.
	var errResp ErrorResponse
	w = doJSON(t, router, http.MethodPost, "/v1/kindred/persons", "u1",
		AddPersonRequest{Name: "Dad", Relationship: "Father", AnchorID: "ghost"}, &errResp)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown anchor: status = %d, want 404", w.Code)
	}

	// Unknown relationship label.
	selfID := func() string {
		var tree TreeResponse
		doJSON(t, router, http.MethodGet, "/v1/kindred/tree", "u1", nil, &tree)
		return tree.Persons[0].ID
	}()
	w = doJSON(t, router, http.MethodPost, "/v1/kindred/persons", "u1",
		AddPersonRequest{Name: "Somebody", Relationship: "Cousin", AnchorID: selfID}, &errResp)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown relationship: status = %d, want 400", w.Code)
	}
}

func TestAddRelativeAndGenerations(t *testing.T) {
	router := setupTestRouter(t)
	selfID := createSelf(t, router, "u1", "Asha")

	var created PersonResponse
	w := doJSON(t, router, http.MethodPost, "/v1/kindred/persons", "u1",
		AddPersonRequest{Name: "Dad", Relationship: "Father", AnchorID: selfID, Gender: "male"}, &created)
	if w.Code != http.StatusCreated {
		t.Fatalf("add father: status = %d, body %s", w.Code, w.Body.String())
	}

	// Root defaults to the caller's self record.
	var gens GenerationsResponse
	w = doJSON(t, router, http.MethodGet, "/v1/kindred/tree/generations", "u1", nil, &gens)
	if w.Code != http.StatusOK {
		t.Fatalf("generations: status = %d", w.Code)
	}
	if gens.Generations[selfID] != 0 || gens.Generations[created.Person.ID] != -1 {
		t.Errorf("generations = %v", gens.Generations)
	}
}

func TestPathEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	selfID := createSelf(t, router, "u1", "Asha")

	var created PersonResponse
	doJSON(t, router, http.MethodPost, "/v1/kindred/persons", "u1",
		AddPersonRequest{Name: "Dad", Relationship: "Father", AnchorID: selfID, Gender: "male"}, &created)

	// 'to' is required.
	w := doJSON(t, router, http.MethodGet, "/v1/kindred/tree/path", "u1", nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing 'to': status = %d, want 400", w.Code)
	}

	var result struct {
		Found bool `json:"pathFound"`
		Path  []struct {
			Relation string `json:"connectionToPreviousPerson"`
		} `json:"path"`
	}
	w = doJSON(t, router, http.MethodGet, "/v1/kindred/tree/path?to="+created.Person.ID, "u1", nil, &result)
	if w.Code != http.StatusOK {
		t.Fatalf("path: status = %d", w.Code)
	}
	if !result.Found || len(result.Path) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Path[0].Relation != "Self" || result.Path[1].Relation != "Father" {
		t.Errorf("relations = %q, %q", result.Path[0].Relation, result.Path[1].Relation)
	}
}

func TestLayoutEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	selfID := createSelf(t, router, "u1", "Asha")

	var layout struct {
		RootID string `json:"rootId"`
		Nodes  []struct {
			Role string `json:"role"`
		} `json:"nodes"`
	}
	w := doJSON(t, router, http.MethodGet, "/v1/kindred/tree/layout", "u1", nil, &layout)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if layout.RootID != selfID {
		t.Errorf("RootID = %q, want %q", layout.RootID, selfID)
	}
	if len(layout.Nodes) != 1 || layout.Nodes[0].Role != "root" {
		t.Errorf("nodes = %+v", layout.Nodes)
	}
}

func TestDescribePathDisabled(t *testing.T) {
	router := setupTestRouter(t)
	createSelf(t, router, "u1", "Asha")

	var errResp ErrorResponse
	w := doJSON(t, router, http.MethodPost, "/v1/kindred/tree/path/describe", "u1",
		DescribePathRequest{ToID: "anything"}, &errResp)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if errResp.Code != "DESCRIBER_DISABLED" {
		t.Errorf("code = %q", errResp.Code)
	}
}

func TestUpdateAndDeletePerson(t *testing.T) {
	router := setupTestRouter(t)
	selfID := createSelf(t, router, "u1", "Asha")

	var created PersonResponse
	doJSON(t, router, http.MethodPost, "/v1/kindred/persons", "u1",
		AddPersonRequest{Name: "Dad", Relationship: "Father", AnchorID: selfID, Gender: "male"}, &created)

	newName := "Father Dearest"
	var updated PersonResponse
	w := doJSON(t, router, http.MethodPatch, "/v1/kindred/persons/"+created.Person.ID, "u1",
		UpdatePersonRequest{Name: &newName}, &updated)
	if w.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body %s", w.Code, w.Body.String())
	}
	if updated.Person.Name != newName {
		t.Errorf("Name = %q", updated.Person.Name)
	}

	w = doJSON(t, router, http.MethodDelete, "/v1/kindred/persons/"+created.Person.ID, "u1", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", w.Code)
	}

	var tree TreeResponse
	doJSON(t, router, http.MethodGet, "/v1/kindred/tree", "u1", nil, &tree)
	if len(tree.Persons) != 1 {
		t.Errorf("tree has %d persons after delete, want 1", len(tree.Persons))
	}
	// The cascade cleared the survivor's parent slot.
	if tree.Persons[0].FatherID != "" {
		t.Errorf("FatherID = %q, want cleared", tree.Persons[0].FatherID)
	}

	w = doJSON(t, router, http.MethodDelete, "/v1/kindred/persons/ghost", "u1", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want 404", w.Code)
	}
}

func TestScanPrivateCallerEmpty(t *testing.T) {
	router := setupTestRouter(t)
	createSelf(t, router, "u1", "Asha")

	// Accounts are private until made public; the scan reports nothing.
	var resp ScanResponse
	w := doJSON(t, router, http.MethodPost, "/v1/kindred/discovery/scan", "u1",
		ScanRequest{FilterOption: "nativePlace"}, &resp)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(resp.Matches) != 0 {
		t.Errorf("matches = %d, want 0", len(resp.Matches))
	}
}

// stalledPersonReads wraps a store so candidate person reads hang until the
// scan deadline fires.
type stalledPersonReads struct {
	store.Store
}

func (s stalledPersonReads) GetPerson(ctx context.Context, _, _ string) (*person.Person, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// TestScanTimeoutResponse: a scan that blows its deadline answers 504 with
// the SCAN_TIMEOUT code, not a generic 500.
func TestScanTimeoutResponse(t *testing.T) {
	st, err := badgerstore.NewInMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	for _, id := range []string{"u1", "u2"} {
		var b store.Batch
		b.Put(id, &person.Person{ID: id + "-self", Kind: person.KindSelf, Name: "Asha", NativePlace: "Pune"})
		if err := st.ApplyBatch(ctx, &b); err != nil {
			t.Fatalf("seed persons for %s: %v", id, err)
		}
		u := &store.User{ID: id, IsPublic: true, SelfPersonID: id + "-self"}
		if err := st.PutUser(ctx, u); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}

	svc := NewService(ServiceConfig{
		Store:          stalledPersonReads{st},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		ScannerOptions: []discovery.ScannerOption{discovery.WithTimeout(time.Millisecond)},
	})
	router := gin.New()
	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))

	var errResp ErrorResponse
	w := doJSON(t, router, http.MethodPost, "/v1/kindred/discovery/scan", "u1",
		ScanRequest{FilterOption: "nativePlace"}, &errResp)
	if w.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504, body %s", w.Code, w.Body.String())
	}
	if errResp.Code != "SCAN_TIMEOUT" {
		t.Errorf("code = %q, want SCAN_TIMEOUT", errResp.Code)
	}
}

func TestKonnectionEndpoints(t *testing.T) {
	router := setupTestRouter(t)
	createSelf(t, router, "alice", "Alice")
	createSelf(t, router, "bob", "Bob")

	// Accepting with no pending request conflicts.
	w := doJSON(t, router, http.MethodPost, "/v1/kindred/konnections/alice/accept", "bob", nil, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("accept without request: status = %d, want 409", w.Code)
	}

	// Requesting a konnection with an unknown user 404s.
	w = doJSON(t, router, http.MethodPost, "/v1/kindred/konnections/ghost/request", "alice", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("request to unknown user: status = %d, want 404", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/v1/kindred/konnections/bob/request", "alice", nil, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("request: status = %d", w.Code)
	}

	var bobView KonnectionsResponse
	doJSON(t, router, http.MethodGet, "/v1/kindred/konnections", "bob", nil, &bobView)
	if len(bobView.Pending) != 1 || bobView.Pending[0] != "alice" {
		t.Fatalf("bob pending = %v", bobView.Pending)
	}

	w = doJSON(t, router, http.MethodPost, "/v1/kindred/konnections/alice/accept", "bob", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("accept: status = %d", w.Code)
	}

	for _, user := range []string{"alice", "bob"} {
		var view KonnectionsResponse
		doJSON(t, router, http.MethodGet, "/v1/kindred/konnections", user, nil, &view)
		if len(view.Konnected) != 1 {
			t.Errorf("%s konnected = %v, want one entry", user, view.Konnected)
		}
		if len(view.Pending) != 0 {
			t.Errorf("%s pending = %v, want empty", user, view.Pending)
		}
	}
}

func TestDeleteAccount(t *testing.T) {
	router := setupTestRouter(t)
	createSelf(t, router, "u1", "Asha")

	w := doJSON(t, router, http.MethodDelete, "/v1/kindred/account", "u1", nil, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}

	var tree TreeResponse
	doJSON(t, router, http.MethodGet, "/v1/kindred/tree", "u1", nil, &tree)
	if len(tree.Persons) != 0 {
		t.Errorf("tree = %d persons after account deletion", len(tree.Persons))
	}
}
