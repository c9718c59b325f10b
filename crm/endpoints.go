package crm

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/ispkit/selfcare/subscriber"
	"github.com/ispkit/selfcare/tenants"
)

// LoginResult is the payload of a successful authenticate/verify-OTP call.
type LoginResult struct {
	Token   string             `json:"token"`
	Profile subscriber.Profile `json:"profile"`
}

// Authenticate performs a username+password login and returns the bearer
// token plus the subscriber profile.
func (c *Client) Authenticate(ctx context.Context, username, password string) (*LoginResult, error) {
	data, err := c.post(ctx, c.tenant.Path(tenants.EndpointAuthenticate), "", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if err != nil {
		return nil, err
	}
	var result LoginResult
	if err := decode(data, &result); err != nil {
		return nil, errors.Wrap(err, "[Client.Authenticate]")
	}
	if result.Token == "" {
		return nil, &BusinessError{Message: "login succeeded but no token was issued"}
	}
	return &result, nil
}

// Reauthenticate is Authenticate reduced to the token, for silent
// regeneration from cached credentials.
func (c *Client) Reauthenticate(ctx context.Context, username, password string) (string, error) {
	result, err := c.Authenticate(ctx, username, password)
	if err != nil {
		return "", err
	}
	return result.Token, nil
}

// RequestOTP asks the CRM to send a one-time password to the subscriber's
// registered mobile number.
func (c *Client) RequestOTP(ctx context.Context, mobile string) error {
	_, err := c.post(ctx, c.tenant.Path(tenants.EndpointRequestOTP), "", map[string]string{
		"mobile": mobile,
	}, nil)
	return err
}

// VerifyOTP completes an OTP login. No credentials are cached for OTP
// logins, so sessions created this way cannot silently regenerate.
func (c *Client) VerifyOTP(ctx context.Context, mobile, otp string) (*LoginResult, error) {
	data, err := c.post(ctx, c.tenant.Path(tenants.EndpointVerifyOTP), "", map[string]string{
		"mobile": mobile,
		"otp":    otp,
	}, nil)
	if err != nil {
		return nil, err
	}
	var result LoginResult
	if err := decode(data, &result); err != nil {
		return nil, errors.Wrap(err, "[Client.VerifyOTP]")
	}
	if result.Token == "" {
		return nil, &BusinessError{Message: "login succeeded but no token was issued"}
	}
	return &result, nil
}

// UserDetails fetches the account profile. It also serves as the implicit
// "is this token still valid" probe.
func (c *Client) UserDetails(ctx context.Context, token string) (*subscriber.Profile, error) {
	data, err := c.postOp(ctx, tenants.EndpointUserDetails, token, nil)
	if err != nil {
		return nil, err
	}
	var profile subscriber.Profile
	if err := decode(data, &profile); err != nil {
		return nil, errors.Wrap(err, "[Client.UserDetails]")
	}
	return &profile, nil
}

// Usage fetches the current billing-cycle consumption counters.
func (c *Client) Usage(ctx context.Context, token string) (*subscriber.Usage, error) {
	data, err := c.postOp(ctx, tenants.EndpointUsage, token, nil)
	if err != nil {
		return nil, err
	}
	var usage subscriber.Usage
	if err := decode(data, &usage); err != nil {
		return nil, errors.Wrap(err, "[Client.Usage]")
	}
	return &usage, nil
}

// Ledger fetches the account ledger.
func (c *Client) Ledger(ctx context.Context, token string) ([]subscriber.LedgerEntry, error) {
	data, err := c.postOp(ctx, tenants.EndpointLedger, token, nil)
	if err != nil {
		return nil, err
	}
	var entries []subscriber.LedgerEntry
	if err := decode(data, &entries); err != nil {
		return nil, errors.Wrap(err, "[Client.Ledger]")
	}
	return entries, nil
}

// Complaints lists the account's support tickets. An empty list is a
// success; "No Complaints Found" arrives as a BusinessError and is the
// caller's to interpret.
func (c *Client) Complaints(ctx context.Context, token string) ([]subscriber.Ticket, error) {
	data, err := c.postOp(ctx, tenants.EndpointComplaints, token, nil)
	if err != nil {
		return nil, err
	}
	var tickets []subscriber.Ticket
	if err := decode(data, &tickets); err != nil {
		return nil, errors.Wrap(err, "[Client.Complaints]")
	}
	return tickets, nil
}

// RegisterComplaint raises a new support ticket.
func (c *Client) RegisterComplaint(ctx context.Context, token, subject, description, category string) (*subscriber.Ticket, error) {
	data, err := c.postOp(ctx, tenants.EndpointRegisterComplaint, token, map[string]string{
		"subject":     subject,
		"description": description,
		"category":    category,
	})
	if err != nil {
		return nil, err
	}
	var ticket subscriber.Ticket
	if err := decode(data, &ticket); err != nil {
		return nil, errors.Wrap(err, "[Client.RegisterComplaint]")
	}
	return &ticket, nil
}

// Plans lists the renewal candidates available to the account.
func (c *Client) Plans(ctx context.Context, token string) ([]subscriber.Plan, error) {
	data, err := c.postOp(ctx, tenants.EndpointPlans, token, nil)
	if err != nil {
		return nil, err
	}
	var plans []subscriber.Plan
	if err := decode(data, &plans); err != nil {
		return nil, errors.Wrap(err, "[Client.Plans]")
	}
	return plans, nil
}

// RenewPlan requests renewal onto the given plan.
func (c *Client) RenewPlan(ctx context.Context, token, planCode string) error {
	_, err := c.postOp(ctx, tenants.EndpointRenewPlan, token, map[string]string{
		"plan_code": planCode,
	})
	return err
}

// PaymentOptions lists the payment gateways the tenant offers.
func (c *Client) PaymentOptions(ctx context.Context, token string) ([]subscriber.PaymentOption, error) {
	data, err := c.postOp(ctx, tenants.EndpointPaymentOptions, token, nil)
	if err != nil {
		return nil, err
	}
	var options []subscriber.PaymentOption
	if err := decode(data, &options); err != nil {
		return nil, errors.Wrap(err, "[Client.PaymentOptions]")
	}
	return options, nil
}

// RecordPayment reports a completed gateway transaction back to the CRM.
func (c *Client) RecordPayment(ctx context.Context, token string, receipt subscriber.PaymentReceipt) error {
	_, err := c.postOp(ctx, tenants.EndpointRecordPayment, token, map[string]string{
		"reference":     receipt.Reference,
		"gateway":       receipt.Gateway,
		"gateway_tx_id": receipt.GatewayTx,
		"amount":        receipt.Amount,
		"paid_at":       receipt.PaidAt.UTC().Format("2006-01-02 15:04:05"),
		"plan_code":     receipt.PlanCode,
	})
	return err
}

// UploadDocument uploads one KYC document as a multipart file part.
func (c *Client) UploadDocument(ctx context.Context, token string, docType subscriber.DocumentType, filename string, content io.Reader) (*subscriber.Document, error) {
	data, err := c.post(ctx, c.tenant.Path(tenants.EndpointUploadDocument), token, map[string]string{
		"doc_type": string(docType),
	}, &filePart{field: "document", filename: filename, content: content})
	if err != nil {
		return nil, err
	}
	doc := subscriber.Document{Type: docType, FileName: filename}
	if err := decode(data, &doc); err != nil {
		return nil, errors.Wrap(err, "[Client.UploadDocument]")
	}
	return &doc, nil
}

// Dropdown calls the generic combo-code endpoint directly, for operations
// that have no typed wrapper.
func (c *Client) Dropdown(ctx context.Context, token, comboCode string, params map[string]string) (json.RawMessage, error) {
	fields := map[string]string{"combo_code": comboCode}
	for k, v := range params {
		fields[k] = v
	}
	return c.post(ctx, c.tenant.Path(tenants.EndpointDropdown), token, fields, nil)
}
