// Package tenants describes the white-label deployments. Each tenant is one
// branded build of the app pointed at one ISP's CRM; the descriptor carries
// everything that varies between them (base URL, referer, endpoint paths,
// login kind, classification quirks) so the client and retry protocol can be
// implemented once.
package tenants

import "strings"

// LoginKind says how subscribers of a tenant authenticate.
type LoginKind string

const (
	LoginPassword LoginKind = "password"
	LoginOTP      LoginKind = "otp"
	LoginBoth     LoginKind = "both"
)

// Endpoint names used to look up per-tenant path overrides.
const (
	EndpointAuthenticate      = "authenticate"
	EndpointRequestOTP        = "request_otp"
	EndpointVerifyOTP         = "verify_otp"
	EndpointUserDetails       = "user_details"
	EndpointUsage             = "usage"
	EndpointLedger            = "ledger"
	EndpointComplaints        = "complaints"
	EndpointRegisterComplaint = "register_complaint"
	EndpointPlans             = "plans"
	EndpointRenewPlan         = "renew_plan"
	EndpointPaymentOptions    = "payment_options"
	EndpointRecordPayment     = "record_payment"
	EndpointUploadDocument    = "upload_document"
	EndpointDropdown          = "dropdown"
)

// defaultPaths are the CRM paths shared by most deployments. A tenant that
// diverges overrides individual entries in its descriptor.
var defaultPaths = map[string]string{
	EndpointAuthenticate:      "/api/selfcare/login",
	EndpointRequestOTP:        "/api/selfcare/requestOtp",
	EndpointVerifyOTP:         "/api/selfcare/verifyOtp",
	EndpointUserDetails:       "/api/selfcare/userDetails",
	EndpointUsage:             "/api/selfcare/usageDetails",
	EndpointLedger:            "/api/selfcare/ledger",
	EndpointComplaints:        "/api/selfcare/complaints",
	EndpointRegisterComplaint: "/api/selfcare/registerComplaint",
	EndpointPlans:             "/api/selfcare/plans",
	EndpointRenewPlan:         "/api/selfcare/renewPlan",
	EndpointPaymentOptions:    "/api/selfcare/paymentOptions",
	EndpointRecordPayment:     "/api/selfcare/recordPayment",
	EndpointUploadDocument:    "/api/selfcare/uploadDocument",
	EndpointDropdown:          "/api/selfcare/selfcareDropdown",
}

// Tenant is one branded deployment descriptor.
type Tenant struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	BaseURL   string    `json:"base_url" yaml:"base_url"`
	Referer   string    `json:"referer" yaml:"referer"` // fixed referer header the CRM expects
	LoginKind LoginKind `json:"login_kind" yaml:"login_kind"`

	// Endpoints overrides defaultPaths per endpoint name. A tenant that
	// funnels operations through the generic dropdown endpoint instead maps
	// the operation to a combo code in ComboCodes.
	Endpoints  map[string]string `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	ComboCodes map[string]string `json:"combo_codes,omitempty" yaml:"combo_codes,omitempty"`

	// Extra headers sent on every request (beyond cache-control/referer).
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// PasswordRejectsAsAuthExpired marks tenants whose CRM reports an expired
	// token as "Invalid Username or Password", so that phrase must be
	// classified as an auth failure for them.
	PasswordRejectsAsAuthExpired bool `json:"password_rejects_as_auth_expired,omitempty" yaml:"password_rejects_as_auth_expired,omitempty"`
}

// Path resolves the URL path for an endpoint name, applying the tenant's
// overrides over the shared defaults.
func (t *Tenant) Path(endpoint string) string {
	if p, ok := t.Endpoints[endpoint]; ok && p != "" {
		return p
	}
	return defaultPaths[endpoint]
}

// ComboCode returns the dropdown combo code for an operation, if the tenant
// routes it through the generic dropdown endpoint.
func (t *Tenant) ComboCode(operation string) (string, bool) {
	code, ok := t.ComboCodes[operation]
	return code, ok
}

// UsesPassword reports whether password login (and therefore silent token
// regeneration from cached credentials) is available for this tenant.
func (t *Tenant) UsesPassword() bool {
	return t.LoginKind == LoginPassword || t.LoginKind == LoginBoth || t.LoginKind == ""
}

// Validate reports the first structural problem with the descriptor.
func (t *Tenant) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return ErrMissingID
	case strings.TrimSpace(t.BaseURL) == "":
		return ErrMissingBaseURL
	case !strings.HasPrefix(t.BaseURL, "http://") && !strings.HasPrefix(t.BaseURL, "https://"):
		return ErrBadBaseURL
	}
	return nil
}
