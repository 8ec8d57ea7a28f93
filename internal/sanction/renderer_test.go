package sanction

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedIDs []string

func (f *fixedIDs) NewID() string {
	id := (*f)[0]
	*f = (*f)[1:]
	return id
}

func newTestRenderer(t *testing.T, ids ...string) *Renderer {
	t.Helper()
	src := fixedIDs(ids)
	r, err := NewRenderer(config.SanctionConfig{
		OutputDir:  filepath.Join(t.TempDir(), "letters"),
		LenderName: "Acme Finance",
		Signatory:  "Authorized Signatory",
	}, logger.NewNoOpLogger(),
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }),
		WithIDSource(&src),
	)
	require.NoError(t, err)
	return r
}

func sampleLetter() Letter {
	return Letter{
		Name:         "Rahul Sharma",
		Phone:        "9999999901",
		Amount:       decimal.NewFromInt(150000),
		TenureMonths: 24,
		EMI:          decimal.RequireFromString("7061.02"),
	}
}

func TestRenderer_WritesPDF(t *testing.T) {
	r := newTestRenderer(t, "ABC123")

	name, err := r.Render(context.Background(), sampleLetter())
	require.NoError(t, err)
	assert.Equal(t, "Sanction_Letter_9999999901_ABC123.pdf", name)

	data, err := os.ReadFile(filepath.Join(r.Dir(), name))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	entries, err := os.ReadDir(r.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no pending files left behind")
}

func TestRenderer_NeverOverwrites(t *testing.T) {
	r := newTestRenderer(t, "SAME", "SAME")

	_, err := r.Render(context.Background(), sampleLetter())
	require.NoError(t, err)

	_, err = r.Render(context.Background(), sampleLetter())
	assert.ErrorIs(t, err, ErrLetterExists)
}

func TestRenderer_CanceledContext(t *testing.T) {
	r := newTestRenderer(t, "X1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, sampleLetter())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUUIDSource(t *testing.T) {
	a, b := uuidSource{}.NewID(), uuidSource{}.NewID()
	assert.Len(t, a, 10)
	assert.NotEqual(t, a, b)
}
