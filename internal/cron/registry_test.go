package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry := NewRegistry(namedJob("stale-claims"), nil, namedJob("seat-drift"))
	require.NoError(t, registry.Register(namedJob("outbox-retention")))

	jobs := registry.Jobs()
	assert.Equal(t, []Job{namedJob("stale-claims"), namedJob("seat-drift"), namedJob("outbox-retention")}, jobs)

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryRejectsDuplicatesAndNil(t *testing.T) {
	registry := NewRegistry(namedJob("sweep"), namedJob("sweep"))
	assert.Len(t, registry.Jobs(), 1)
	assert.Error(t, registry.Register(namedJob("sweep")))
	assert.Error(t, registry.Register(nil))
}
