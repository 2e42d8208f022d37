package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
	"github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/response"
)

type fakeService struct {
	err  error
	last *domain.CompletionRequest
}

func (s *fakeService) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	p, err := req.Normalize()
	if err != nil {
		return nil, err
	}
	return &domain.CompletionResponse{Suggestions: []string{fmt.Sprintf("%s@%d", p.Language, p.Offset)}}, nil
}

func newRouter(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.Use(log.GinMiddleware(zerolog.Nop()))
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/complete", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCompleteReturnsRawSuggestions(t *testing.T) {
	r := newRouter(&fakeService{})

	w := post(r, `{"code":"abc","cursorOffset":1,"language":"go"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}

	var body map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if got := body["suggestions"]; len(got) != 1 || got[0] != "go@1" {
		t.Errorf("suggestions = %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestCompleteEmptyBodyUsesDefaults(t *testing.T) {
	r := newRouter(&fakeService{})

	w := post(r, `{}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "javascript@0") {
		t.Errorf("status = %d body = %s", w.Code, w.Body)
	}
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name       string
		svcErr     error
		body       string
		wantStatus int
		wantCode   string
	}{
		{"invalid json", nil, `{"code":`, http.StatusBadRequest, "BAD_REQUEST"},
		{"offset out of range", nil, `{"code":"ab","cursorOffset":5}`, http.StatusBadRequest, "BAD_REQUEST"},
		{"generator failure", errors.New("quota"), `{"code":"x"}`, http.StatusBadGateway, "UPSTREAM_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(newRouter(&fakeService{err: tt.svcErr}), tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body response.Response
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Success || body.Error == nil || body.Error.Code != tt.wantCode {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodOptions, "/api/complete", nil)
	req.Header.Set("Origin", "http://editor.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Errorf("allow methods = %q", w.Header().Get("Access-Control-Allow-Methods"))
	}
}
