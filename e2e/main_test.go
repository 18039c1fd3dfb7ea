//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"budget/internal/assistant"
	"budget/internal/auth"
	"budget/internal/cache"
	"budget/internal/core"
	apphttp "budget/internal/http"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/services"
	"budget/internal/storage/memory"
)

var appURL string

type cannedCompleter struct{}

func (cannedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	return "Spend less than you earn.", nil
}

func TestMain(m *testing.M) {
	os.Exit(runTestMain(m))
}

// runTestMain serves the real handler stack over a memory store.
func runTestMain(m *testing.M) int {
	store := memory.New()
	logger := log.Discard()

	authService, err := auth.NewService(store, auth.NewTokenIssuer("e2e-secret", time.Hour), bcrypt.MinCost, logger)
	if err != nil {
		fmt.Printf("Failed to create auth service: %v\n", err)
		return 1
	}
	entries := services.NewEntryService(store, cache.NewLRUCache[[]core.Entry](4, time.Minute), nil, logger)

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:      "127.0.0.1:0",
		Auth:      authService,
		Entries:   entries,
		Assistant: assistant.NewProxy(cannedCompleter{}, logger),
		Health:    store,
		AuthRateLimit: ratelimit.Config{
			RequestsPerMinute: 600,
			Burst:             100,
			CleanupInterval:   time.Minute,
			IdleTTL:           time.Minute,
		},
		Logger: logger,
	})
	if err != nil {
		fmt.Printf("Failed to create server: %v\n", err)
		return 1
	}

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()
	defer srv.Shutdown(context.Background())
	appURL = ts.URL

	return m.Run()
}
