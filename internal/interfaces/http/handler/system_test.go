package handler

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemHandler(t *testing.T) {
	tests := []struct {
		name      string
		db        Pinger
		wantReady int
	}{
		{name: "database up", db: PingerFunc(func(context.Context) error { return nil }), wantReady: http.StatusOK},
		{name: "database down", db: PingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }), wantReady: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("1.2.3", tt.db)
			engine := gin.New()
			engine.GET("/health", h.Health)
			engine.GET("/health/ready", h.Ready)
			engine.GET("/api/v1/system/info", h.Info)
			s := &testServer{engine: engine}

			w, _ := s.do(t, http.MethodGet, "/health", nil)
			assert.Equal(t, http.StatusOK, w.Code)

			w, _ = s.do(t, http.MethodGet, "/health/ready", nil)
			assert.Equal(t, tt.wantReady, w.Code)
			assert.NotContains(t, w.Body.String(), "refused")

			w, env := s.do(t, http.MethodGet, "/api/v1/system/info", nil)
			require.Equal(t, http.StatusOK, w.Code)
			info := decode[SystemInfo](t, env.Data)
			assert.Equal(t, "1.2.3", info.Version)
			assert.Equal(t, runtime.Version(), info.GoVersion)
		})
	}
}

func TestSystemHandler_ReadyWithSQLite(t *testing.T) {
	s := newTestServer(t)
	h := NewSystemHandler("dev", s.db)
	engine := gin.New()
	engine.GET("/health/ready", h.Ready)

	w, _ := (&testServer{engine: engine}).do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
