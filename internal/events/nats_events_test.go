package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"claim-oracle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject = subject
	f.data = data
	return f.err
}

func sampleIssuance() *models.Issuance {
	return &models.Issuance{
		ID:        "id-1",
		RequestID: "req-1",
		Address:   "0x1111111111111111111111111111111111111111",
		Token:     "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Contract:  "0x598e1cebb2a4b7f169eecbbdfcab395438e6ec27",
		Amount:    "42",
		Nonce:     "3",
		Hash:      "0xabc",
		Signature: "0xdef",
		Signer:    "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestPublishAuthorized(t *testing.T) {
	fake := &fakePublisher{}
	publisher := NewClaimEventPublisher(fake, "")
	assert.Equal(t, DefaultAuthorizedSubject, publisher.Subject())

	require.NoError(t, publisher.PublishAuthorized(context.Background(), sampleIssuance()))
	assert.Equal(t, DefaultAuthorizedSubject, fake.subject)

	var event ClaimAuthorizedEvent
	require.NoError(t, json.Unmarshal(fake.data, &event))
	assert.Equal(t, "ClaimAuthorized", event.EventName)
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "42", event.Amount)
	assert.Equal(t, "3", event.Nonce)
	assert.Equal(t, int64(1700000000), event.Timestamp)
}

func TestPublishAuthorizedCustomSubject(t *testing.T) {
	fake := &fakePublisher{}
	require.NoError(t, NewClaimEventPublisher(fake, "fantom.claims").PublishAuthorized(context.Background(), sampleIssuance()))
	assert.Equal(t, "fantom.claims", fake.subject)
}

func TestPublishAuthorizedErrors(t *testing.T) {
	fake := &fakePublisher{err: errors.New("nats: connection closed")}
	err := NewClaimEventPublisher(fake, "").PublishAuthorized(context.Background(), sampleIssuance())
	assert.ErrorContains(t, err, "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake = &fakePublisher{}
	err = NewClaimEventPublisher(fake, "").PublishAuthorized(ctx, sampleIssuance())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, fake.data)
}
