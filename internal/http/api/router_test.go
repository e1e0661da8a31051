package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lmslight/lms-core/internal/access"
	"github.com/lmslight/lms-core/internal/config"
	"github.com/lmslight/lms-core/internal/db"
	"github.com/lmslight/lms-core/internal/history"
	"github.com/lmslight/lms-core/internal/http/api/admin"
	"github.com/lmslight/lms-core/internal/http/api/front"
	"github.com/lmslight/lms-core/internal/metrics"
	"github.com/lmslight/lms-core/internal/models"
	"github.com/lmslight/lms-core/internal/quota"
	"github.com/lmslight/lms-core/internal/ratelimit"
	"github.com/lmslight/lms-core/internal/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const testSecret = "router-secret"

type testServer struct {
	engine   *gin.Engine
	db       *gorm.DB
	limits   *ratelimit.Manager
	recorder *history.Recorder
	now      time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	seed := []any{
		&models.User{ID: "t1", Username: "teacher", FirstName: "Tess", LastName: "Ng", Email: "t1@example.com", Role: models.RoleTeacher},
		&models.User{ID: "s1", Username: "student", FirstName: "Sam", LastName: "Lee", Email: "s1@example.com", Role: models.RoleStudent},
		&models.User{ID: "s2", Username: "outsider", FirstName: "Out", LastName: "Sider", Email: "s2@example.com", Role: models.RoleStudent},
		&models.Class{ID: "c1", Name: "Literature", TeacherID: "t1"},
		&models.ClassStudent{ClassID: "c1", StudentID: "s1"},
	}
	for _, row := range seed {
		if errCreate := conn.Create(row).Error; errCreate != nil {
			t.Fatalf("seed: %v", errCreate)
		}
	}

	srv := &testServer{db: conn, now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	nowFn := func() time.Time { return srv.now }

	m, errMetrics := metrics.New()
	if errMetrics != nil {
		t.Fatalf("metrics: %v", errMetrics)
	}
	limits := ratelimit.NewManager(ratelimit.DefaultSettingsConfig, nowFn, nil)
	limits.SetObserver(m)
	scoped := ratelimit.NewManager(func() ratelimit.SettingsConfig {
		return ratelimit.DefaultSettingsConfig().Scoped()
	}, nowFn, nil)
	scoped.SetObserver(m)
	gate, errGate := quota.NewGate(limits, scoped)
	if errGate != nil {
		t.Fatalf("gate: %v", errGate)
	}
	recorder := history.NewRecorder(history.NewGormStore(conn))
	recorder.SetObserver(m)

	jwtCfg := config.JWTConfig{Secret: testSecret, Expiry: time.Hour}
	srv.engine = NewRouter(RouterDeps{
		DB:      conn,
		Metrics: m.Handler(),
		Front: front.Deps{
			JWT:           jwtCfg,
			Limits:        limits,
			Gate:          gate,
			Recorder:      recorder,
			Classes:       access.NewGormClassChecker(conn),
			QuotaObserver: m,
		},
		Admin: admin.Deps{
			JWT:      jwtCfg,
			Limits:   limits,
			Gate:     gate,
			Recorder: recorder,
		},
	})
	srv.limits = limits
	srv.recorder = recorder
	return srv
}

func (s *testServer) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal: %v", errMarshal)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, errIssue := security.IssueUserToken(testSecret, userID, role, time.Hour, time.Now())
		if errIssue != nil {
			t.Fatalf("issue token: %v", errIssue)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(w.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), errDecode)
	}
	return out
}

func TestHealthzAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	if w := srv.do(t, http.MethodGet, "/healthz", "", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", w.Code)
	}
	w := srv.do(t, http.MethodGet, "/metrics", "", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Fatalf("expected metrics exposition, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/v0/me/ai-requests", "", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestMeRateLimits(t *testing.T) {
	srv := newTestServer(t)
	if _, errCheck := srv.limits.CheckChat(context.Background(), "s1"); errCheck != nil {
		t.Fatalf("check chat: %v", errCheck)
	}

	w := srv.do(t, http.MethodGet, "/v0/me/rate-limits", "s1", models.RoleStudent, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("X-RateLimit-Limit") != "100" {
		t.Fatalf("expected api throttle headers, got %q", w.Header().Get("X-RateLimit-Limit"))
	}
	limits := decodeBody(t, w)["limits"].(map[string]any)
	chat := limits["chat"].(map[string]any)
	if chat["remaining"].(float64) != 29 || chat["status"] == nil {
		t.Fatalf("unexpected chat entry %+v", chat)
	}
	ai := limits["ai"].(map[string]any)
	if ai["remaining"].(float64) != 5 || ai["status"] != nil {
		t.Fatalf("unexpected ai entry %+v", ai)
	}
	if _, ok := limits["annotation"]; !ok {
		t.Fatalf("expected annotation entry")
	}
}

func TestReserveAIRequestQuotas(t *testing.T) {
	srv := newTestServer(t)
	path := "/v0/reading-texts/rt1/ai-requests"
	body := map[string]string{"class_id": "c1"}

	if w := srv.do(t, http.MethodPost, path, "s2", models.RoleStudent, body); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-member, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodPost, path, "s1", models.RoleStudent, map[string]string{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without class_id, got %d", w.Code)
	}

	for i := 0; i < 3; i++ {
		w := srv.do(t, http.MethodPost, path, "s1", models.RoleStudent, body)
		if w.Code != http.StatusOK {
			t.Fatalf("reserve %d: expected 200, got %d: %s", i+1, w.Code, w.Body.String())
		}
		out := decodeBody(t, w)
		if out["reading_text_remaining"].(float64) != float64(2-i) || out["remaining"].(float64) != float64(4-i) {
			t.Fatalf("reserve %d: unexpected body %+v", i+1, out)
		}
		if out["request_id"] == "" || out["per_reading_text_limit"].(float64) != 3 || out["limit"].(float64) != 5 {
			t.Fatalf("reserve %d: unexpected body %+v", i+1, out)
		}
	}

	w := srv.do(t, http.MethodPost, path, "s1", models.RoleStudent, body)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	out := decodeBody(t, w)
	if out["axis"] != string(quota.AxisScoped) || out["remaining"].(float64) != 0 {
		t.Fatalf("unexpected denial %+v", out)
	}
	if w.Header().Get("Retry-After") != "86400" {
		t.Fatalf("expected Retry-After 86400, got %q", w.Header().Get("Retry-After"))
	}
	exposition := srv.do(t, http.MethodGet, "/metrics", "", "", nil).Body.String()
	if !strings.Contains(exposition, `lms_quota_denials_total{axis="reading_text"} 1`) {
		t.Fatalf("expected one scoped denial metric in exposition")
	}

	me := decodeBody(t, srv.do(t, http.MethodGet, "/v0/me/ai-requests", "s1", models.RoleStudent, nil))
	if me["remaining"].(float64) != 2 || me["used"].(float64) != 3 || me["limit"].(float64) != 5 {
		t.Fatalf("unexpected global budget %+v", me)
	}
	scopedMe := decodeBody(t, srv.do(t, http.MethodGet, "/v0/me/reading-texts/rt1/ai-requests", "s1", models.RoleStudent, nil))
	if scopedMe["remaining"].(float64) != 0 || scopedMe["used"].(float64) != 3 {
		t.Fatalf("unexpected scoped budget %+v", scopedMe)
	}

	for i := 0; i < 2; i++ {
		if w := srv.do(t, http.MethodPost, "/v0/reading-texts/rt2/ai-requests", "s1", models.RoleStudent, body); w.Code != http.StatusOK {
			t.Fatalf("rt2 reserve %d: expected 200, got %d", i+1, w.Code)
		}
	}
	w = srv.do(t, http.MethodPost, "/v0/reading-texts/rt3/ai-requests", "s1", models.RoleStudent, body)
	if w.Code != http.StatusTooManyRequests || decodeBody(t, w)["axis"] != string(quota.AxisGlobal) {
		t.Fatalf("expected global denial, got %d: %s", w.Code, w.Body.String())
	}

	srv.now = srv.now.Add(24*time.Hour + time.Second)
	if w := srv.do(t, http.MethodPost, path, "s1", models.RoleStudent, body); w.Code != http.StatusOK {
		t.Fatalf("expected quota to recover after the window, got %d", w.Code)
	}

	records, errHistory := srv.recorder.ByClass(context.Background(), "c1", 0)
	if errHistory != nil {
		t.Fatalf("history: %v", errHistory)
	}
	if len(records) != 6 || records[0].TableName != "ai_requests" || records[0].User == nil {
		t.Fatalf("expected 6 ai request records with actors, got %d", len(records))
	}
}

func TestHistoryAccess(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	srv.recorder.Record(ctx, history.Entry{Table: "classes", RecordID: "c1", Action: history.ActionCreate, NewData: map[string]string{"name": "Literature"}, UserID: "t1", ClassID: "c1"})
	srv.recorder.Record(ctx, history.Entry{Table: "annotations", RecordID: "a1", Action: history.ActionCreate, NewData: map[string]string{"text": "hi"}, UserID: "s1", ClassID: "c1"})
	srv.recorder.Record(ctx, history.Entry{Table: "notes", RecordID: "n1", Action: history.ActionCreate, NewData: map[string]string{"text": "mine"}, UserID: "s2"})

	if w := srv.do(t, http.MethodGet, "/v0/history", "s1", models.RoleStudent, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without selectors, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/v0/history?classId=c1", "s2", models.RoleStudent, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for outsider, got %d", w.Code)
	}

	w := srv.do(t, http.MethodGet, "/v0/history?classId=c1&limit=1", "s1", models.RoleStudent, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	entries := decodeBody(t, w)["history"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["table_name"] != "annotations" {
		t.Fatalf("expected newest class entry only, got %+v", entries)
	}
	user := entries[0].(map[string]any)["user"].(map[string]any)
	if user["username"] != "student" {
		t.Fatalf("expected actor fields, got %+v", user)
	}

	if w := srv.do(t, http.MethodGet, "/v0/history?tableName=classes&recordId=c1", "s2", models.RoleStudent, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on class record for outsider, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/v0/history?tableName=annotations&recordId=a1", "s2", models.RoleStudent, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on class-bound record for outsider, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/v0/history?tableName=annotations&recordId=a1", "t1", models.RoleTeacher, nil); w.Code != http.StatusOK {
		t.Fatalf("expected teacher access to class record, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/v0/history?tableName=notes&recordId=n1", "s2", models.RoleStudent, nil); w.Code != http.StatusOK {
		t.Fatalf("expected author access to own record, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/v0/me/classes/c1/history", "t1", models.RoleTeacher, nil); w.Code != http.StatusOK {
		t.Fatalf("expected class history for teacher, got %d", w.Code)
	}
}

func TestAdminRateLimitReset(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, errCheck := srv.limits.CheckAIRequest(ctx, "s1"); errCheck != nil {
			t.Fatalf("check: %v", errCheck)
		}
	}

	path := "/v0/admin/rate-limits/ai_request?subject=s1"
	if w := srv.do(t, http.MethodDelete, path, "s1", models.RoleStudent, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for student, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodDelete, "/v0/admin/rate-limits/unknown?subject=s1", "t1", models.RoleTeacher, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", w.Code)
	}

	w := srv.do(t, http.MethodGet, path, "t1", models.RoleTeacher, nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["remaining"].(float64) != 0 {
		t.Fatalf("expected exhausted budget, got %d: %s", w.Code, w.Body.String())
	}
	w = srv.do(t, http.MethodDelete, path, "t1", models.RoleTeacher, nil)
	if w.Code != http.StatusOK || decodeBody(t, w)["reset"] != true {
		t.Fatalf("expected reset, got %d: %s", w.Code, w.Body.String())
	}
	if remaining, _ := srv.limits.AIRequestRemaining(ctx, "s1"); remaining != 5 {
		t.Fatalf("expected full budget after reset, got %d", remaining)
	}

	records, errHistory := srv.recorder.ByRecord(ctx, "rate_limits", "s1:ai_request")
	if errHistory != nil {
		t.Fatalf("history: %v", errHistory)
	}
	if len(records) != 1 || records[0].Action != history.ActionDelete || records[0].UserID != "t1" || records[0].NewData != nil {
		t.Fatalf("expected one reset record, got %+v", records)
	}

	if w := srv.do(t, http.MethodDelete, "/v0/admin/reading-texts/rt1/ai-requests?user_id=s1", "t1", models.RoleTeacher, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected scoped reset to be admin only, got %d", w.Code)
	}
	if w := srv.do(t, http.MethodGet, "/v0/admin/history?tableName=rate_limits&recordId=s1:ai_request", "a1", models.RoleAdmin, nil); w.Code != http.StatusOK {
		t.Fatalf("expected admin history, got %d", w.Code)
	}
}
