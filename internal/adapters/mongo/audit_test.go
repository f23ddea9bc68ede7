package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	mongoadapter "github.com/robertarktes/ticket-inventory/internal/adapters/mongo"
	"github.com/robertarktes/ticket-inventory/internal/domain"
	"github.com/robertarktes/ticket-inventory/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestAuditLogger(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer container.Terminate(ctx)

	hostPort, err := container.PortEndpoint(ctx, "27017/tcp", "")
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://"+hostPort))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	audit := mongoadapter.NewAuditLogger(client.Database("inventory"), observability.NopLogger())

	bookingID := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	created := domain.Notification{ID: uuid.New(), Type: domain.ReservationCreated, BookingID: bookingID, UserID: uuid.New(), TicketCount: 2, Status: domain.StatusPending, OccurredAt: now}
	confirmed := created
	confirmed.ID = uuid.New()
	confirmed.Type = domain.ReservationConfirmed
	confirmed.Status = domain.StatusConfirmed
	confirmed.OccurredAt = now.Add(time.Minute)

	require.NoError(t, audit.LogNotification(ctx, confirmed))
	require.NoError(t, audit.LogNotification(ctx, created))
	require.NoError(t, audit.LogNotification(ctx, created), "redelivery must not fail")

	history, err := audit.History(ctx, bookingID.String())
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.ReservationCreated, history[0].Action)
	assert.Equal(t, domain.ReservationConfirmed, history[1].Action)
	assert.EqualValues(t, 2, history[0].Data["ticket_count"])
}
