package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/omniflow/quotad/internal/counter"
	"github.com/omniflow/quotad/internal/db"
	"github.com/omniflow/quotad/internal/enforce"
	"github.com/omniflow/quotad/internal/resolver"
	"github.com/omniflow/quotad/internal/usagetrack"
)

func newQuotaRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + filepath.Join(t.TempDir(), "handlers-test.db")
	conn, errOpen := db.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	memory := counter.NewMemoryStore(time.Now)
	usage := usagetrack.NewService(conn, memory, time.Now)
	engine := enforce.NewEngine(resolver.New(conn), usage)

	router := gin.New()
	handler := NewQuotaHandler(engine)
	router.POST("/v0/quota/check", handler.Check)
	router.POST("/v0/quota/enforce", handler.Enforce)
	return router
}

func TestQuotaCheckEndpoint(t *testing.T) {
	router := newQuotaRouter(t)

	body := `{"identity":{"user_id":1,"plan_tier":"FREE"},"resource":"gateways"}`
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v0/quota/check", strings.NewReader(body))
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}
	var result enforce.Result
	if errDecode := json.Unmarshal(recorder.Body.Bytes(), &result); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if !result.Allowed {
		t.Fatalf("result = %+v, want allowed", result)
	}
}

func TestQuotaEnforceDenialReturns403(t *testing.T) {
	router := newQuotaRouter(t)
	body := `{"identity":{"user_id":1,"plan_tier":"FREE"},"resource":"gateways"}`

	// FREE plan allows one gateway; the second request must be denied.
	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v0/quota/enforce", strings.NewReader(body)))
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200: %s", first.Code, first.Body.String())
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v0/quota/enforce", strings.NewReader(body)))
	if second.Code != http.StatusForbidden {
		t.Fatalf("second status = %d, want 403: %s", second.Code, second.Body.String())
	}
	var payload map[string]any
	if errDecode := json.Unmarshal(second.Body.Bytes(), &payload); errDecode != nil {
		t.Fatalf("decode: %v", errDecode)
	}
	if payload["resource"] != "gateways" {
		t.Fatalf("payload = %v, want resource=gateways", payload)
	}
}

func TestQuotaCheckRejectsBadRequests(t *testing.T) {
	router := newQuotaRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing user", `{"identity":{},"resource":"gateways"}`},
		{"unknown resource", `{"identity":{"user_id":1},"resource":"mainframes"}`},
	}
	for _, tc := range cases {
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/v0/quota/check", strings.NewReader(tc.body))
		router.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", tc.name, recorder.Code)
		}
	}
}
