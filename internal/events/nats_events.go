package events

import (
	"context"
	"encoding/json"
	"fmt"

	"claim-oracle/internal/models"
)

// DefaultAuthorizedSubject subject of claim authorization events
const DefaultAuthorizedSubject = "claims.authorized"

// Publisher sends raw messages, satisfied by *clients.NATSClient
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ClaimAuthorizedEvent payload published for every issued claim signature
type ClaimAuthorizedEvent struct {
	EventName string `json:"event_name"`
	RequestID string `json:"request_id"`
	Address   string `json:"address"`
	Token     string `json:"token"`
	Contract  string `json:"contract"`
	Amount    string `json:"amount"`
	Nonce     string `json:"nonce"`
	Hash      string `json:"hash"`
	Signature string `json:"signature"`
	Signer    string `json:"signer"`
	Timestamp int64  `json:"timestamp"` // unix seconds
}

// ClaimEventPublisher publishes ClaimAuthorizedEvent messages
type ClaimEventPublisher struct {
	publisher Publisher
	subject   string
}

// NewClaimEventPublisher creates a publisher on subject (DefaultAuthorizedSubject when empty)
func NewClaimEventPublisher(publisher Publisher, subject string) *ClaimEventPublisher {
	if subject == "" {
		subject = DefaultAuthorizedSubject
	}
	return &ClaimEventPublisher{publisher: publisher, subject: subject}
}

// Subject events are published on
func (p *ClaimEventPublisher) Subject() string {
	return p.subject
}

// PublishAuthorized publishes the event for one issuance
func (p *ClaimEventPublisher) PublishAuthorized(ctx context.Context, issuance *models.Issuance) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(NewClaimAuthorizedEvent(issuance))
	if err != nil {
		return fmt.Errorf("failed to encode claim event: %w", err)
	}
	return p.publisher.Publish(p.subject, data)
}

// NewClaimAuthorizedEvent builds the event payload for issuance
func NewClaimAuthorizedEvent(issuance *models.Issuance) ClaimAuthorizedEvent {
	return ClaimAuthorizedEvent{
		EventName: "ClaimAuthorized",
		RequestID: issuance.RequestID,
		Address:   issuance.Address,
		Token:     issuance.Token,
		Contract:  issuance.Contract,
		Amount:    issuance.Amount,
		Nonce:     issuance.Nonce,
		Hash:      issuance.Hash,
		Signature: issuance.Signature,
		Signer:    issuance.Signer,
		Timestamp: issuance.CreatedAt.Unix(),
	}
}
