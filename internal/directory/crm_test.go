package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loan-assistant/internal/common/crm"
	"loan-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRMDirectory_MapsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/customers/9999999901" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"name":"Rahul Sharma","pre_approved_limit":500000,"credit_score":780}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := NewCRMDirectory(crm.NewClient(srv.URL, "", time.Second))

	c, err := dir.Lookup(context.Background(), "9999999901")
	require.NoError(t, err)
	assert.Equal(t, "9999999901", c.Phone)

	_, err = dir.Lookup(context.Background(), "1234567890")
	assert.ErrorIs(t, err, models.ErrCustomerNotFound)
}
