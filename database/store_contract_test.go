package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-analytics-server/models"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("create and fetch", func(t *testing.T) {
		form, err := store.CreateForm(ctx, surveyInput())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.DeleteForm(ctx, form.ID) })

		got, err := store.GetForm(ctx, form.ID)
		require.NoError(t, err)
		assert.Equal(t, form.ID, got.ID)
		assert.Equal(t, "Survey", got.Title)
		require.Len(t, got.Fields, 2)
		assert.Equal(t, models.FieldTypeRating, got.Fields[0].Type)
	})

	t.Run("partial update", func(t *testing.T) {
		form, err := store.CreateForm(ctx, surveyInput())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.DeleteForm(ctx, form.ID) })

		desc := "now with a description"
		updated, err := store.UpdateForm(ctx, form.ID, models.FormPatch{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, "Survey", updated.Title)
		assert.Equal(t, desc, updated.Description)
	})

	t.Run("values keep submission order", func(t *testing.T) {
		form, err := store.CreateForm(ctx, surveyInput())
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.DeleteForm(ctx, form.ID) })

		_, err = store.CreateResponse(ctx, form.ID, map[string]any{"q1": 5}, "")
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
		_, err = store.CreateResponse(ctx, form.ID, map[string]any{"q1": 3, "q2": []any{"a", "b"}}, "")
		require.NoError(t, err)

		rows, err := store.ListResponses(ctx, form.ID, models.ResponseQuery{Order: models.OldestFirst})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, float64(5), rows[0].Values["q1"])
		assert.Equal(t, float64(3), rows[1].Values["q1"])
		assert.Equal(t, []any{"a", "b"}, rows[1].Values["q2"])

		n, err := store.CountResponses(ctx, form.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("delete cascades", func(t *testing.T) {
		form, err := store.CreateForm(ctx, surveyInput())
		require.NoError(t, err)
		_, err = store.CreateResponse(ctx, form.ID, map[string]any{"q1": 4}, "")
		require.NoError(t, err)

		require.NoError(t, store.DeleteForm(ctx, form.ID))

		_, err = store.GetForm(ctx, form.ID)
		assert.ErrorIs(t, err, ErrFormNotFound)
		rows, err := store.ListResponses(ctx, form.ID, models.ResponseQuery{})
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.ErrorIs(t, store.DeleteForm(ctx, form.ID), ErrFormNotFound)
	})

	t.Run("submission to missing form", func(t *testing.T) {
		_, err := store.CreateResponse(ctx, "does-not-exist", map[string]any{"q1": 1}, "")
		assert.ErrorIs(t, err, ErrFormNotFound)
	})

	require.NoError(t, store.Ping(ctx))
}

func TestSQLiteStoreContract(t *testing.T) {
	runStoreContract(t, newSQLiteStore(t))
}

func TestMongoStoreContract(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := OpenMongo(ctx, uri, "form_analytics_test", quietLog())
	if err != nil {
		t.Skipf("MongoDB unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	runStoreContract(t, store)
}

func TestSurrealStoreContract(t *testing.T) {
	url := os.Getenv("SURREALDB_URL")
	if url == "" {
		t.Skip("SURREALDB_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := OpenSurreal(ctx, SurrealOptions{
		URL:       url,
		Namespace: "form_analytics_test",
		Database:  "contract",
		Username:  "root",
		Password:  "root",
	}, quietLog())
	if err != nil {
		t.Skipf("SurrealDB unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	runStoreContract(t, store)
}
