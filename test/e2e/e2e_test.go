//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-assistant/internal/api"
	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/database"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/directory"
	"loan-assistant/internal/events"
	"loan-assistant/internal/sales"
	"loan-assistant/internal/sanction"
	"loan-assistant/internal/session"
	"loan-assistant/pkg/customerfile"
)

// stack holds the live services the suite runs against.
type stack struct {
	cfg   *config.Config
	pg    *database.PostgresClient
	rdb   *redis.Client
	es    *database.ElasticsearchClient
	index string
}

func connect(t *testing.T) *stack {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)

	// 🔧 FORCE LOCALHOST FOR E2E TESTS
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Redis.Address = "localhost:6379"
	cfg.Database.Elasticsearch.Addresses = []string{"http://localhost:9200"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "❌ PostgreSQL client creation failed")
	if err := pg.Ping(ctx); err != nil {
		t.Skipf("PostgreSQL not reachable: %v", err)
	}
	t.Cleanup(func() { pg.Close() })
	t.Log("✅ PostgreSQL connected")

	rc, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err, "❌ Redis client creation failed")
	if err := rc.Ping(ctx); err != nil {
		t.Skipf("Redis not reachable: %v", err)
	}
	t.Cleanup(func() { rc.Close() })
	t.Log("✅ Redis connected")

	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	require.NoError(t, err, "❌ Elasticsearch client creation failed")
	if err := es.Ping(); err != nil {
		t.Skipf("Elasticsearch not reachable: %v", err)
	}
	t.Log("✅ Elasticsearch connected")

	index := fmt.Sprintf("loan-decisions-e2e-%d", time.Now().UnixNano())
	require.NoError(t, es.EnsureIndex(ctx, index, events.IndexMapping))
	t.Cleanup(func() {
		res, err := es.Client.Indices.Delete([]string{index})
		if err == nil {
			res.Body.Close()
		}
	})

	return &stack{cfg: cfg, pg: pg, rdb: rc.Client, es: es, index: index}
}

func seedCustomers(t *testing.T, s *stack) *directory.PostgresDirectory {
	t.Helper()
	ctx := context.Background()

	customers, err := customerfile.Load(filepath.Join("..", "..", "data", "customers.json"))
	require.NoError(t, err)

	dir := directory.NewPostgresDirectory(s.pg.DB)
	require.NoError(t, dir.EnsureSchema(ctx))
	for _, c := range customers {
		require.NoError(t, dir.Upsert(ctx, c))
	}
	t.Logf("✅ Seeded %d customers", len(customers))
	return dir
}

// scriptedSales stands in for the completion endpoint.
func scriptedSales(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Loans from 12% p.a. with instant approval. Shall we check your eligibility?"}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func newApp(t *testing.T, s *stack) http.Handler {
	t.Helper()
	log := logger.NewTestLogger(t)

	dir := directory.NewCachedDirectory(seedCustomers(t, s), s.rdb, time.Minute, log)

	salesCfg := s.cfg.Sales
	salesCfg.BaseURL = scriptedSales(t)
	salesCfg.APIKey = "e2e"

	sanctionCfg := s.cfg.Sanction
	sanctionCfg.OutputDir = t.TempDir()
	renderer, err := sanction.NewRenderer(sanctionCfg, log)
	require.NoError(t, err)

	prefix := fmt.Sprintf("loan:e2e:%d:", time.Now().UnixNano())
	store := session.NewRedisStore(s.rdb, prefix)
	locker := session.NewRedisLocker(s.rdb, prefix+"lock:", 30*time.Second)

	machine := conversation.NewMachine(sales.NewClient(salesCfg, log), dir, renderer, decimal.NewFromInt(50000))
	svc := conversation.NewService(machine, store, locker, log,
		conversation.WithEvents(events.NewElasticsearchSink(s.es.Client, s.index)),
	)
	return api.NewServer(s.cfg.Server, svc, renderer.Dir(), log).Routes()
}

func chat(t *testing.T, h http.Handler, threadID, message string) map[string]interface{} {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"thread_id": threadID, "message": message})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestFullE2E(t *testing.T) {
	if os.Getenv("E2E") == "" {
		t.Skip("set E2E=1 with Postgres, Redis and Elasticsearch on localhost")
	}

	s := connect(t)
	h := newApp(t, s)

	t.Run("instant approval", func(t *testing.T) {
		thread := fmt.Sprintf("e2e-instant-%d", time.Now().UnixNano())

		assert.Equal(t, "SALES", chat(t, h, thread, "Hi, I need a loan")["next_stage"])
		assert.Equal(t, "VERIFICATION", chat(t, h, thread, "9999999901")["next_stage"])
		assert.Equal(t, "UNDERWRITING", chat(t, h, thread, "9999999901")["next_stage"])
		chat(t, h, thread, "300000")

		out := chat(t, h, thread, "24")
		assert.Equal(t, "END", out["next_stage"])
		assert.NotEmpty(t, out["sanction_letter"])
	})

	t.Run("salary slip", func(t *testing.T) {
		thread := fmt.Sprintf("e2e-slip-%d", time.Now().UnixNano())

		chat(t, h, thread, "9999999901")
		chat(t, h, thread, "9999999901")
		chat(t, h, thread, "800000")
		assert.Equal(t, "UPLOAD", chat(t, h, thread, "36")["next_stage"])

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "salary_slip.pdf")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("%PDF-1.4 e2e"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/upload?thread_id="+thread, &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var out map[string]interface{}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
		assert.Equal(t, "processed", out["status"])
		assert.Equal(t, "APPROVED_WITH_DOCS", out["decision"])
	})

	t.Run("decisions indexed", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			res, err := s.es.Client.Count(s.es.Client.Count.WithIndex(s.index))
			if err != nil {
				return false
			}
			defer res.Body.Close()
			var body struct {
				Count int `json:"count"`
			}
			return json.NewDecoder(res.Body).Decode(&body) == nil && body.Count >= 2
		}, 10*time.Second, 500*time.Millisecond)
	})

	t.Log("✅ ALL TESTS PASSED - full E2E loan flow successful!")
}
