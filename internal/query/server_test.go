package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/turbolytics/cataloger/internal/catalog"
	"github.com/turbolytics/cataloger/internal/store/memory"
)

func TestServerRoutes(t *testing.T) {
	do := func(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
		t.Helper()
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	t.Run("by source newest first", func(t *testing.T) {
		srv := NewServer(NewService(seededStore(t)), zap.NewNop())

		rec := do(t, srv, "/sources/crm/objects")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var records []catalog.Record
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 3)
		assert.Equal(t, "2024-02-01T00:00:00Z", records[0].IngestedAt)
		assert.Equal(t, "2024-01-15T10:00:00Z", records[2].IngestedAt)
	})

	t.Run("by container oldest first", func(t *testing.T) {
		srv := NewServer(NewService(seededStore(t)), zap.NewNop())

		rec := do(t, srv, "/objects?container=bucket1&start=2024-01-01T00:00:00Z&end=2024-01-31T23:59:59Z")
		require.Equal(t, http.StatusOK, rec.Code)

		var records []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
		require.Len(t, records, 2)
		assert.Equal(t, "2024-01-10T00:00:00Z", records[0]["ingestedAt"])
		assert.Equal(t, "2024-01-15T10:00:00Z", records[1]["ingestedAt"])
		assert.Equal(t, float64(1), records[1]["sizeBytes"])
		assert.Equal(t, "s3://bucket1/crm/a.csv", records[1]["s3Uri"])
		assert.Equal(t, "INGESTED", records[1]["status"])
	})

	t.Run("bucket alias", func(t *testing.T) {
		srv := NewServer(NewService(seededStore(t)), zap.NewNop())
		rec := do(t, srv, "/objects?bucket=bucket2&start=2024-01-01T00:00:00Z&end=2024-01-31T23:59:59Z")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "crm/c.csv")
	})

	t.Run("empty result is an empty array", func(t *testing.T) {
		srv := NewServer(NewService(memory.New()), zap.NewNop())
		rec := do(t, srv, "/sources/crm/objects")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", rec.Body.String())
	})

	t.Run("missing start is a 400 without a store query", func(t *testing.T) {
		s := seededStore(t)
		srv := NewServer(NewService(s), zap.NewNop())

		rec := do(t, srv, "/objects?container=bucket1&end=2024-01-31T23:59:59Z")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body.Error, "start")
		assert.Contains(t, body.Error, "Provide container, start, end")
		assert.Equal(t, 0, s.CallCount.Query)
	})

	t.Run("store failure is a 500", func(t *testing.T) {
		srv := NewServer(NewService(brokenStore{memory.New()}), zap.NewNop())
		rec := do(t, srv, "/sources/crm/objects")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
	})

	t.Run("truncated pages are flagged", func(t *testing.T) {
		srv := NewServer(NewService(seededStore(t), WithPageSize(1)), zap.NewNop())
		rec := do(t, srv, "/sources/crm/objects")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get(TruncatedHeader))
	})

	t.Run("escaped source system is decoded once", func(t *testing.T) {
		s := memory.New()
		require.NoError(t, s.Put(context.Background(), record("a%41", "bucket1", "2024-01-15T10:00:00Z", "x.csv")))
		require.NoError(t, s.Put(context.Background(), record("aA", "bucket1", "2024-01-15T10:00:00Z", "y.csv")))
		require.NoError(t, s.Put(context.Background(), record("a/b", "bucket1", "2024-01-15T10:00:00Z", "z.csv")))
		srv := NewServer(NewService(s), zap.NewNop())

		for target, key := range map[string]string{
			"/sources/a%2541/objects": "x.csv",
			"/sources/aA/objects":     "y.csv",
			"/sources/a%2Fb/objects":  "z.csv",
		} {
			rec := do(t, srv, target)
			require.Equal(t, http.StatusOK, rec.Code, target)

			var records []catalog.Record
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
			require.Len(t, records, 1, target)
			assert.Equal(t, key, records[0].ObjectKey, target)
		}
	})

	t.Run("health", func(t *testing.T) {
		srv := NewServer(NewService(memory.New()), zap.NewNop())
		assert.Equal(t, http.StatusOK, do(t, srv, "/health").Code)
	})
}
