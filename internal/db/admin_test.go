package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/depthscan/internal/testutil"
)

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	w := testutil.Serve(mux, testutil.DebugRequest(http.MethodGet, "/debug/"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tailsql")
	assert.Contains(t, w.Body.String(), "backup")
}

func TestBackupRoute(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, NewRunStore(db).Start("run-1", testTime))
	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	w := testutil.Serve(mux, testutil.DebugRequest(http.MethodGet, "/debug/backup"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".db.gz")

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.True(t, len(data) > 16)
	assert.Equal(t, "SQLite format 3\x00", string(data[:16]))
}
