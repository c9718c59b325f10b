// Package subscriber holds the data model returned by the CRM backends:
// account profile, plan, usage counters, ledger, tickets, KYC documents and
// payment options. Field names follow the CRM wire format.
package subscriber

import "time"

// Profile is the account record returned by the user-details endpoint. It
// doubles as the implicit "is this token still valid" probe payload.
type Profile struct {
	Username     string `json:"username"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Mobile       string `json:"mobile,omitempty"`
	Address      string `json:"address,omitempty"`
	AccountNo    string `json:"account_no,omitempty"`
	Status       string `json:"status,omitempty"` // e.g. "active", "suspended"
	CurrentPlan  Plan   `json:"current_plan,omitempty"`
	WalletAmount string `json:"wallet_amount,omitempty"`
}

// Plan describes a subscription plan, either the active one or a renewal
// candidate.
type Plan struct {
	Code       string    `json:"plan_code,omitempty"`
	Name       string    `json:"plan_name,omitempty"`
	Price      string    `json:"plan_price,omitempty"` // CRM sends money as strings
	ValidUpto  time.Time `json:"valid_upto,omitempty"`
	DataLimit  int64     `json:"data_limit,omitempty"` // bytes, 0 = unlimited
	SpeedMbps  int       `json:"speed_mbps,omitempty"`
	ComboCode  string    `json:"combo_code,omitempty"`
	Renewable  bool      `json:"renewable,omitempty"`
	Validity   string    `json:"validity,omitempty"` // e.g. "30 Days"
	TaxPercent string    `json:"tax_percent,omitempty"`
}

// Usage is the consumption snapshot for the current billing cycle.
type Usage struct {
	UsedBytes   int64     `json:"used_bytes"`
	QuotaBytes  int64     `json:"quota_bytes"` // 0 = unlimited
	UploadBytes int64     `json:"upload_bytes,omitempty"`
	DownBytes   int64     `json:"down_bytes,omitempty"`
	SessionTime string    `json:"session_time,omitempty"`
	LastSession time.Time `json:"last_session,omitempty"`
}

// QuotaFraction returns used/quota in [0,1], or -1 for unlimited plans.
func (u Usage) QuotaFraction() float64 {
	if u.QuotaBytes <= 0 {
		return -1
	}
	f := float64(u.UsedBytes) / float64(u.QuotaBytes)
	if f > 1 {
		f = 1
	}
	return f
}

// LedgerEntry is one row of the account ledger.
type LedgerEntry struct {
	Date        time.Time `json:"date"`
	Particulars string    `json:"particulars"`
	Debit       string    `json:"debit,omitempty"`
	Credit      string    `json:"credit,omitempty"`
	Balance     string    `json:"balance,omitempty"`
	ReceiptNo   string    `json:"receipt_no,omitempty"`
}

// Ticket is a support complaint raised against the account.
type Ticket struct {
	ID          string    `json:"ticket_id"`
	Subject     string    `json:"subject"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"` // "open", "closed", "in_progress"
	RaisedAt    time.Time `json:"raised_at,omitempty"`
	ClosedAt    time.Time `json:"closed_at,omitempty"`
	Category    string    `json:"category,omitempty"`
}

// DocumentType enumerates the KYC documents the upload endpoint accepts.
type DocumentType string

const (
	DocumentPhoto        DocumentType = "photo"
	DocumentAddressProof DocumentType = "address_proof"
	DocumentIDProof      DocumentType = "id_proof"
	DocumentSignature    DocumentType = "signature"
)

// Document is the metadata of an uploaded KYC document.
type Document struct {
	Type       DocumentType `json:"doc_type"`
	FileName   string       `json:"file_name"`
	UploadedAt time.Time    `json:"uploaded_at,omitempty"`
	Verified   bool         `json:"verified,omitempty"`
}

// PaymentOption is one gateway the tenant offers for bill payment.
type PaymentOption struct {
	Gateway     string `json:"gateway"` // e.g. "razorpay", "atom", "easebuzz"
	DisplayName string `json:"display_name,omitempty"`
	MerchantID  string `json:"merchant_id,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// PaymentReceipt records a completed gateway transaction back to the CRM.
type PaymentReceipt struct {
	Reference string    `json:"reference"` // client-generated UUID
	Gateway   string    `json:"gateway"`
	GatewayTx string    `json:"gateway_tx_id"`
	Amount    string    `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
	PlanCode  string    `json:"plan_code,omitempty"`
}
