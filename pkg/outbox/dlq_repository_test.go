package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/billing-webhooks/pkg/db/dbtest"
	"github.com/angelmondragon/billing-webhooks/pkg/db/models"
	"github.com/angelmondragon/billing-webhooks/pkg/enums"
)

func deadRow() models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventBillingPaymentFailed,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
		AttemptCount:  4,
	}
}

func TestDLQRoundTrip(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewDLQRepository(conn)
	failedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	row := deadRow()
	entry := NewDLQEntry(row, enums.OutboxDLQReasonMaxAttempts, errors.New(strings.Repeat("x", 2*maxDLQErrorLen)), failedAt)
	require.NoError(t, repo.InsertTx(conn, entry))
	require.NoError(t, repo.InsertTx(conn, NewDLQEntry(deadRow(), enums.OutboxDLQReasonMaxAttempts, nil, failedAt)))
	require.NoError(t, repo.InsertTx(conn, NewDLQEntry(deadRow(), enums.OutboxDLQReasonUnroutable, nil, failedAt)))

	stored, err := repo.FindByEventID(context.Background(), row.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 4, stored.AttemptCount)
	require.NotNil(t, stored.ErrorMessage)
	assert.Len(t, *stored.ErrorMessage, maxDLQErrorLen)

	missing, err := repo.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	counts, err := repo.CountByReason(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[enums.OutboxDLQErrorReason]int64{
		enums.OutboxDLQReasonMaxAttempts: 2,
		enums.OutboxDLQReasonUnroutable:  1,
	}, counts)
}

func TestDLQInsertRejectsUnknownReason(t *testing.T) {
	conn := dbtest.Open(t)
	err := NewDLQRepository(conn).InsertTx(conn, NewDLQEntry(deadRow(), "expired", nil, time.Now()))
	assert.Error(t, err)
	assert.Error(t, NewDLQRepository(conn).InsertTx(nil, models.OutboxDLQ{}))
}
