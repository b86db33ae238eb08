package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/config"
	"github.com/DustGate/dustgate/internal/service"
)

func freezeRouter(t *testing.T) (*service.ParamsManager, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	params, err := service.NewParamsManager(config.EngineConfig{
		OperatorWallet: "0x00000000000000000000000000000000000000ff",
		MaxBatchLegs:   5,
	})
	if err != nil {
		t.Fatalf("params: %v", err)
	}

	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	router := gin.New()
	router.Use(ErrorHandler())
	v1 := router.Group("/v1")
	v1.Use(Freeze(params))
	v1.POST("/settlements", ok)
	v1.POST("/settlements/preview", ok)
	v1.GET("/settlements", ok)
	v1.PUT("/makers/destination", ok)
	return params, router
}

func hit(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestFreezeOffPassesEverything(t *testing.T) {
	_, router := freezeRouter(t)

	for _, probe := range []struct{ method, path string }{
		{http.MethodPost, "/v1/settlements"},
		{http.MethodPut, "/v1/makers/destination"},
		{http.MethodGet, "/v1/settlements"},
	} {
		if rec := hit(router, probe.method, probe.path); rec.Code != http.StatusOK {
			t.Fatalf("%s %s should pass unfrozen, got %d", probe.method, probe.path, rec.Code)
		}
	}
}

func TestFreezeBlocksMutationsOnly(t *testing.T) {
	params, router := freezeRouter(t)
	params.SetFrozen(true)

	rec := hit(router, http.MethodPost, "/v1/settlements")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for frozen settle, got %d", rec.Code)
	}
	if rec := hit(router, http.MethodPut, "/v1/makers/destination"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for frozen destination update, got %d", rec.Code)
	}

	// Reads and previews are exempt.
	if rec := hit(router, http.MethodGet, "/v1/settlements"); rec.Code != http.StatusOK {
		t.Fatalf("GET should pass while frozen, got %d", rec.Code)
	}
	if rec := hit(router, http.MethodPost, "/v1/settlements/preview"); rec.Code != http.StatusOK {
		t.Fatalf("preview should pass while frozen, got %d", rec.Code)
	}
}

func TestFreezeLifts(t *testing.T) {
	params, router := freezeRouter(t)

	params.SetFrozen(true)
	if rec := hit(router, http.MethodPost, "/v1/settlements"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while frozen, got %d", rec.Code)
	}

	params.SetFrozen(false)
	if rec := hit(router, http.MethodPost, "/v1/settlements"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after unfreeze, got %d", rec.Code)
	}
}
