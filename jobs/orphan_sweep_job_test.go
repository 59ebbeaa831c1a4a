package jobs

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-analytics-server/database"
	"form-analytics-server/models"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fakeStore struct {
	calls   atomic.Int32
	removed int64
	err     error
}

func (f *fakeStore) DeleteOrphanResponses(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.removed, f.err
}

func TestSweepOnce(t *testing.T) {
	job := NewOrphanSweepJob(&fakeStore{removed: 3}, time.Minute, quietLog())
	assert.EqualValues(t, 3, job.SweepOnce(context.Background()))

	failing := NewOrphanSweepJob(&fakeStore{err: errors.New("db down")}, time.Minute, quietLog())
	assert.EqualValues(t, 0, failing.SweepOnce(context.Background()))
}

func TestJobRunsOnInterval(t *testing.T) {
	store := &fakeStore{}
	job := NewOrphanSweepJob(store, 10*time.Millisecond, quietLog())

	job.Start()
	assert.Eventually(t, func() bool { return store.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	job.Stop()
	job.Stop()
	after := store.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, store.calls.Load())
}

func TestSweepAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	store, err := database.OpenSQLite(":memory:", quietLog())
	require.NoError(t, err)
	defer store.Close()

	form, err := store.CreateForm(ctx, models.FormInput{
		Title:  "Pulse",
		Fields: []models.Field{{ID: "q1", Label: "Mood", Type: models.FieldTypeRating}},
	})
	require.NoError(t, err)
	_, err = store.CreateResponse(ctx, form.ID, map[string]any{"q1": 4.0}, "")
	require.NoError(t, err)

	job := NewOrphanSweepJob(store, time.Minute, quietLog())
	assert.EqualValues(t, 0, job.SweepOnce(ctx))

	total, err := store.CountResponses(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
