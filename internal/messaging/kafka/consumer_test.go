package kafka

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToServiceEvent(t *testing.T) {
	paymentID := uuid.New()

	payload := GatewayEventPayload{
		PaymentID:            paymentID.String(),
		GatewayTransactionID: "txn-1",
		Response:             "approved",
		TransactionFees:      "2.50",
	}
	event, err := payload.toServiceEvent()
	require.NoError(t, err)
	assert.Equal(t, paymentID, event.PaymentID)
	assert.Equal(t, "txn-1", event.GatewayTransactionID)
	assert.True(t, event.TransactionFees.Equal(decimal.RequireFromString("2.50")))
}

func TestToServiceEventTransactionIDOnly(t *testing.T) {
	payload := GatewayEventPayload{GatewayTransactionID: "txn-1"}

	event, err := payload.toServiceEvent()
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, event.PaymentID)
	assert.Equal(t, "txn-1", event.GatewayTransactionID)
}

func TestToServiceEventNoReference(t *testing.T) {
	payload := GatewayEventPayload{Response: "approved"}

	_, err := payload.toServiceEvent()
	assert.Error(t, err)
}

func TestToServiceEventBadFees(t *testing.T) {
	payload := GatewayEventPayload{
		PaymentID:       uuid.New().String(),
		TransactionFees: "not-a-number",
	}

	_, err := payload.toServiceEvent()
	assert.Error(t, err)
}
