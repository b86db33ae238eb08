package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/service"
)

var idemCaller = &service.Caller{
	APIKey:  "sk-1",
	Address: common.HexToAddress("0x0000000000000000000000000000000000000077"),
}

// idemRouter counts handler executions behind the idempotency layer, with
// the caller injected directly so these tests stay independent of auth.
func idemRouter(store IdempotencyStore, counter *int, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/do", func(c *gin.Context) {
		c.Set(ContextCallerKey, idemCaller)
		c.Next()
	}, Idempotency(store), func(c *gin.Context) {
		*counter++
		c.JSON(status, gin.H{"execution": *counter})
	})
	return router
}

func post(router *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/do", nil)
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyReplaysCachedResponse(t *testing.T) {
	var count int
	router := idemRouter(NewInMemIdempotencyStore(), &count, http.StatusOK)

	rec := post(router, "k1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec2 := post(router, "k1")
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected replayed 200, got %d", rec2.Code)
	}

	if count != 1 {
		t.Fatalf("expected handler to run once, ran %d times", count)
	}
	if rec.Body.String() != rec2.Body.String() {
		t.Fatalf("replayed body differs: %q vs %q", rec.Body.String(), rec2.Body.String())
	}
}

func TestIdempotencyDistinctKeysExecute(t *testing.T) {
	var count int
	router := idemRouter(NewInMemIdempotencyStore(), &count, http.StatusOK)

	post(router, "k1")
	post(router, "k2")
	if count != 2 {
		t.Fatalf("expected two executions for two keys, got %d", count)
	}
}

func TestIdempotencyNoHeaderAlwaysExecutes(t *testing.T) {
	var count int
	router := idemRouter(NewInMemIdempotencyStore(), &count, http.StatusOK)

	post(router, "")
	post(router, "")
	if count != 2 {
		t.Fatalf("expected every keyless request to execute, got %d", count)
	}
}

func TestIdempotencyInFlightConflict(t *testing.T) {
	store := NewInMemIdempotencyStore()
	var count int
	router := idemRouter(store, &count, http.StatusOK)

	// Another request currently holds the lock for this key.
	if rec, locked := store.GetOrLock(idemCaller.Address.Hex() + ":k1"); rec != nil || locked {
		t.Fatalf("expected fresh lock")
	}

	rec := post(router, "k1")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 while in flight, got %d", rec.Code)
	}
	if count != 0 {
		t.Fatalf("handler must not run behind a held lock, ran %d times", count)
	}
}

// Business failures replay like successes: retrying an aborted batch with
// the same key reports the same abort instead of sweeping again.
func TestIdempotencyCachesBusinessFailures(t *testing.T) {
	var count int
	router := idemRouter(NewInMemIdempotencyStore(), &count, http.StatusPaymentRequired)

	rec := post(router, "k1")
	rec2 := post(router, "k1")
	if rec.Code != http.StatusPaymentRequired || rec2.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 on both, got %d and %d", rec.Code, rec2.Code)
	}
	if count != 1 {
		t.Fatalf("expected one execution, got %d", count)
	}
}

func TestIdempotencyServerErrorsStayRetryable(t *testing.T) {
	var count int
	router := idemRouter(NewInMemIdempotencyStore(), &count, http.StatusInternalServerError)

	post(router, "k1")
	post(router, "k1")
	if count != 2 {
		t.Fatalf("expected 5xx responses to unlock and re-execute, got %d executions", count)
	}
}
