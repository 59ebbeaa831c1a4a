package main

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"form-analytics-server/database"
	"form-analytics-server/services"
)

func TestSeedSampleFormsOnlyIntoEmptyStore(t *testing.T) {
	ctx := context.Background()
	l := logrus.New()
	l.SetOutput(io.Discard)
	log := logrus.NewEntry(l)

	store, err := database.OpenSQLite(":memory:", log)
	require.NoError(t, err)
	defer store.Close()
	forms := services.NewFormService(store, log)

	require.NoError(t, seedSampleForms(ctx, forms, log))
	require.NoError(t, seedSampleForms(ctx, forms, log))

	list, err := forms.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Customer Feedback Survey", list[0].Title)
	assert.Equal(t, "Event Registration Form", list[1].Title)
	assert.Len(t, list[0].Fields, 4)
}
