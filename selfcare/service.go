// Package selfcare is the feature layer the screens call: ledger, tickets,
// KYC upload, plan renewal and payments. Every method is one authenticated
// call routed through the token manager; nothing here ever touches the
// bearer token directly.
package selfcare

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ispkit/selfcare/crm"
	"github.com/ispkit/selfcare/subscriber"
	"github.com/ispkit/selfcare/token"
)

// Service exposes the subscriber-facing operations.
type Service struct {
	tokens *token.Manager
	client *crm.Client
	log    zerolog.Logger
}

// New builds the feature service.
func New(tokens *token.Manager, client *crm.Client, log zerolog.Logger) (*Service, error) {
	if tokens == nil {
		return nil, errors.New("[selfcare.New] token manager is required")
	}
	if client == nil {
		return nil, errors.New("[selfcare.New] crm client is required")
	}
	return &Service{
		tokens: tokens,
		client: client,
		log:    log.With().Str("component", "selfcare").Logger(),
	}, nil
}

// Profile fetches the account profile.
func (s *Service) Profile(ctx context.Context) (*subscriber.Profile, error) {
	return token.Call(ctx, s.tokens, s.client.UserDetails)
}

// Usage fetches the current billing-cycle consumption.
func (s *Service) Usage(ctx context.Context) (*subscriber.Usage, error) {
	return token.Call(ctx, s.tokens, s.client.Usage)
}

// Ledger fetches the account ledger.
func (s *Service) Ledger(ctx context.Context) ([]subscriber.LedgerEntry, error) {
	return token.Call(ctx, s.tokens, s.client.Ledger)
}

// Tickets lists support tickets. The backend's "No Complaints Found"
// business rejection reads as an empty list here.
func (s *Service) Tickets(ctx context.Context) ([]subscriber.Ticket, error) {
	tickets, err := token.Call(ctx, s.tokens, s.client.Complaints)
	if err != nil {
		if crm.IsBusiness(err) {
			return nil, nil
		}
		return nil, err
	}
	return tickets, nil
}

// RaiseTicket registers a new complaint.
func (s *Service) RaiseTicket(ctx context.Context, subject, description, category string) (*subscriber.Ticket, error) {
	return token.Call(ctx, s.tokens, func(ctx context.Context, tok string) (*subscriber.Ticket, error) {
		return s.client.RegisterComplaint(ctx, tok, subject, description, category)
	})
}

// UploadKYC uploads one KYC document.
func (s *Service) UploadKYC(ctx context.Context, docType subscriber.DocumentType, filename string, content io.Reader) (*subscriber.Document, error) {
	return token.Call(ctx, s.tokens, func(ctx context.Context, tok string) (*subscriber.Document, error) {
		return s.client.UploadDocument(ctx, tok, docType, filename, content)
	})
}

// Plans lists the renewal candidates.
func (s *Service) Plans(ctx context.Context) ([]subscriber.Plan, error) {
	return token.Call(ctx, s.tokens, s.client.Plans)
}

// Renew requests renewal onto planCode.
func (s *Service) Renew(ctx context.Context, planCode string) error {
	return s.tokens.Do(ctx, func(ctx context.Context, tok string) error {
		return s.client.RenewPlan(ctx, tok, planCode)
	})
}

// PaymentOptions lists the tenant's enabled payment gateways.
func (s *Service) PaymentOptions(ctx context.Context) ([]subscriber.PaymentOption, error) {
	options, err := token.Call(ctx, s.tokens, s.client.PaymentOptions)
	if err != nil {
		return nil, err
	}
	enabled := options[:0]
	for _, opt := range options {
		if opt.Enabled {
			enabled = append(enabled, opt)
		}
	}
	return enabled, nil
}

// Pay records a completed gateway transaction back to the CRM under a fresh
// client-generated receipt reference and returns the receipt.
func (s *Service) Pay(ctx context.Context, receipt subscriber.PaymentReceipt) (*subscriber.PaymentReceipt, error) {
	if receipt.Reference == "" {
		receipt.Reference = uuid.New().String()
	}
	err := s.tokens.Do(ctx, func(ctx context.Context, tok string) error {
		return s.client.RecordPayment(ctx, tok, receipt)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("reference", receipt.Reference).Str("gateway", receipt.Gateway).Msg("payment recorded")
	return &receipt, nil
}
