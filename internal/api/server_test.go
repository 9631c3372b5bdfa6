package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"github.com/nhle/taskbuddy/internal/blob"
	"github.com/nhle/taskbuddy/internal/board"
	"github.com/nhle/taskbuddy/internal/cache"
	"github.com/nhle/taskbuddy/internal/model"
	"github.com/nhle/taskbuddy/internal/service"
	"github.com/nhle/taskbuddy/internal/testutil"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	srv     *Server
	svc     *service.TaskService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := testutil.NewTestStore(t)
	c, err := cache.New(16)
	if err != nil {
		t.Fatal(err)
	}
	files := blob.New(afero.NewMemMapFs(), "http://localhost/attachments")
	svc := service.New(st, files, c)
	srv := NewServer(svc, st, files, nil)
	return &testServer{t: t, handler: srv.Handler(), srv: srv, svc: svc}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			ts.t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func (ts *testServer) signIn(uid string) string {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/v1/auth/session", "", map[string]string{"uid": uid, "email": uid + "@example.com"})
	if w.Code != http.StatusCreated {
		ts.t.Fatalf("sign in: %d %s", w.Code, w.Body)
	}
	var resp signInResponse
	decode(ts.t, w, &resp)
	return resp.Token
}

func (ts *testServer) createTask(token string, d model.TaskDraft) model.Task {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/v1/tasks", token, d)
	if w.Code != http.StatusCreated {
		ts.t.Fatalf("create: %d %s", w.Code, w.Body)
	}
	var task model.Task
	decode(ts.t, w, &task)
	return task
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	decode(t, w, &body)
	return body.Error.Code
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Request-ID") == "" {
		t.Errorf("healthz = %d, headers %v", w.Code, w.Header())
	}
}

func TestSignInSecret(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.RequireSignInSecret("s3cret")

	signIn := func(secret string) int {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/session", strings.NewReader(`{"uid":"u1"}`))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set("X-Sign-In-Secret", secret)
		}
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)
		return w.Code
	}

	tests := []struct {
		name   string
		secret string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "guess", http.StatusUnauthorized},
		{"matching", "s3cret", http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := signIn(tt.secret); got != tt.want {
				t.Errorf("status = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	for _, tc := range []struct{ name, token string }{
		{"missing", ""},
		{"unknown", "nope"},
	} {
		w := ts.do(http.MethodGet, "/v1/tasks", tc.token, nil)
		if w.Code != http.StatusUnauthorized || errorCode(t, w) != "unauthorized" {
			t.Errorf("%s token: %d %s", tc.name, w.Code, w.Body)
		}
	}
}

func TestSignOut(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn("u1")
	if w := ts.do(http.MethodDelete, "/v1/auth/session", token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("sign out: %d", w.Code)
	}
	if w := ts.do(http.MethodGet, "/v1/me", token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("token still valid after sign out: %d", w.Code)
	}
}

func TestPreferences(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn("u1")

	w := ts.do(http.MethodPatch, "/v1/me/preferences", token, map[string]any{"default_view": "board"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body)
	}
	var p model.UserProfile
	decode(t, w, &p)
	if p.Preferences.DefaultView != model.ViewBoard || p.Preferences.Theme != model.ThemeLight || !p.Preferences.EmailNotifications {
		t.Errorf("preferences = %+v", p.Preferences)
	}

	w = ts.do(http.MethodPatch, "/v1/me/preferences", token, map[string]any{"theme": "neon"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid theme: %d", w.Code)
	}
}

func TestTaskLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn("u1")

	task := ts.createTask(token, model.TaskDraft{Title: "Write report", Category: model.CategoryWork})
	if task.Status != model.StatusTodo {
		t.Errorf("status = %s", task.Status)
	}

	w := ts.do(http.MethodPatch, "/v1/tasks/"+task.ID, token, map[string]any{"title": "Write summary"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body)
	}
	var updated model.Task
	decode(t, w, &updated)
	if updated.Title != "Write summary" || len(updated.ActivityLog) != 2 {
		t.Errorf("updated = %+v", updated)
	}

	w = ts.do(http.MethodPatch, "/v1/tasks/"+task.ID, token, map[string]any{"title": "stale", "expected_version": task.Version})
	if w.Code != http.StatusConflict {
		t.Errorf("stale write: %d %s", w.Code, w.Body)
	}

	if w := ts.do(http.MethodDelete, "/v1/tasks/"+task.ID, token, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", w.Code, w.Body)
	}
	if w := ts.do(http.MethodGet, "/v1/tasks/"+task.ID, token, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: %d", w.Code)
	}
}

func TestCreateValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn("u1")
	w := ts.do(http.MethodPost, "/v1/tasks", token, model.TaskDraft{Title: "x", Category: "HOBBY"})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "bad_request" {
		t.Errorf("invalid category: %d %s", w.Code, w.Body)
	}
}

func TestOtherUsersTaskIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.signIn("u1")
	other := ts.signIn("u2")
	task := ts.createTask(owner, model.TaskDraft{Title: "mine", Category: model.CategoryPersonal})

	w := ts.do(http.MethodDelete, "/v1/tasks/"+task.ID, other, nil)
	if w.Code != http.StatusForbidden || errorCode(t, w) != "forbidden" {
		t.Errorf("delete by other user: %d %s", w.Code, w.Body)
	}
}

func TestListTasksComposesLanes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn("u1")
	ts.createTask(token, model.TaskDraft{Title: "Report", Category: model.CategoryWork})
	ts.createTask(token, model.TaskDraft{Title: "Groceries", Category: model.CategoryPersonal})
	ts.createTask(token, model.TaskDraft{Title: "Deploy", Category: model.CategoryWork, Status: model.StatusInProgress})

	w := ts.do(http.MethodGet, "/v1/tasks?category=WORK&sort=title", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body)
	}
	var view board.View
	decode(t, w, &view)
	if len(view.Lanes) != 3 || view.Lanes[0].Title != "Todo (1)" || view.Lanes[1].Title != "In-Progress (1)" {
		t.Errorf("lanes = %+v", view.Lanes)
	}

	w = ts.do(http.MethodGet, "/v1/tasks?q=nothing-matches", token, nil)
	decode(t, w, &view)
	if !view.NoResults {
		t.Error("want no_results for unmatched search")
	}

	w = ts.do(http.MethodGet, "/v1/tasks?status=IN-PROGRESS", token, nil)
	decode(t, w, &view)
	if len(view.Lanes) != 1 || view.Lanes[0].ID != "inProgress" {
		t.Errorf("single lane = %+v", view.Lanes)
	}

	if w := ts.do(http.MethodGet, "/v1/tasks?sort=priority", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown sort key: %d", w.Code)
	}
}

func TestMoveTask(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn("u1")
	task := ts.createTask(token, model.TaskDraft{Title: "t1", Category: model.CategoryWork})

	w := ts.do(http.MethodPost, "/v1/tasks/"+task.ID+"/move", token, map[string]string{"status": "COMPLETED"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"moved":true`) {
		t.Fatalf("move: %d %s", w.Code, w.Body)
	}

	w = ts.do(http.MethodPost, "/v1/tasks/"+task.ID+"/move", token, map[string]string{"status": "COMPLETED"})
	if !strings.Contains(w.Body.String(), `"moved":false`) {
		t.Errorf("same-lane drop: %s", w.Body)
	}
	got, _ := ts.svc.Get(context.Background(), "u1", task.ID)
	if got.Version != 2 {
		t.Errorf("version = %d, want exactly one write", got.Version)
	}

	w = ts.do(http.MethodPost, "/v1/tasks/"+task.ID+"/move", token, map[string]string{"status": "ARCHIVED"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown lane: %d", w.Code)
	}
}

func TestBatch(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn("u1")
	other := ts.signIn("u2")
	a := ts.createTask(token, model.TaskDraft{Title: "a", Category: model.CategoryWork})
	b := ts.createTask(token, model.TaskDraft{Title: "b", Category: model.CategoryWork})
	foreign := ts.createTask(other, model.TaskDraft{Title: "c", Category: model.CategoryWork})

	w := ts.do(http.MethodPost, "/v1/tasks/batch", token, map[string]any{"action": "delete", "ids": []string{a.ID}})
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "confirmation_required" {
		t.Errorf("unconfirmed delete: %d %s", w.Code, w.Body)
	}

	w = ts.do(http.MethodPost, "/v1/tasks/batch", token, map[string]any{"action": "complete", "ids": []string{a.ID, b.ID}})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", w.Code, w.Body)
	}

	w = ts.do(http.MethodPost, "/v1/tasks/batch", token, map[string]any{
		"action": "delete", "ids": []string{a.ID, foreign.ID}, "confirm": true,
	})
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("partial delete: %d %s", w.Code, w.Body)
	}
	var resp batchResponse
	decode(t, w, &resp)
	if resp.Processed != 1 || len(resp.Failed) != 1 || resp.Failed[0] != foreign.ID {
		t.Errorf("response = %+v", resp)
	}
}

func TestMultipartUploadAndServe(t *testing.T) {
	ts := newTestServer(t)
	token := ts.signIn("u1")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("task", `{"title":"With file","category":"WORK"}`)
	fw, _ := mw.CreateFormFile("files", "notes.txt")
	_, _ = fw.Write([]byte("attached content"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/tasks", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}

	var task model.Task
	decode(t, w, &task)
	if len(task.Attachments) != 1 {
		t.Fatalf("attachments = %v", task.Attachments)
	}

	path := strings.TrimPrefix(task.Attachments[0].URL, "http://localhost")
	w = ts.do(http.MethodGet, path, "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "attached content" {
		t.Errorf("serve %s: %d %q", path, w.Code, w.Body)
	}

	if w := ts.do(http.MethodGet, "/attachments/../etc/passwd", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("traversal: %d", w.Code)
	}
}
