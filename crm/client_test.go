package crm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ispkit/selfcare/crm"
	"github.com/ispkit/selfcare/subscriber"
	"github.com/ispkit/selfcare/tenants"
)

const (
	testToken   = "bearer-abc123"
	testReferer = "https://selfcare.dnainfotel.example"
)

func testTenant(baseURL string) *tenants.Tenant {
	return &tenants.Tenant{
		ID:      "dna-infotel",
		Name:    "DNA Infotel",
		BaseURL: baseURL,
		Referer: testReferer,
	}
}

func newClient(t *testing.T, tenant *tenants.Tenant) *crm.Client {
	t.Helper()
	c, err := crm.New(tenant, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func okEnvelope(data interface{}) string {
	raw, _ := json.Marshal(data)
	return fmt.Sprintf(`{"status":"ok","message":"","data":%s,"code":200}`, raw)
}

func TestRequestShape(t *testing.T) {
	var gotReq *http.Request
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		gotForm = make(map[string]string)
		for k, v := range r.MultipartForm.Value {
			gotForm[k] = v[0]
		}
		fmt.Fprint(w, okEnvelope(subscriber.Profile{Username: "alice"}))
	}))
	defer srv.Close()

	c := newClient(t, testTenant(srv.URL))
	profile, err := c.UserDetails(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)

	require.Equal(t, http.MethodPost, gotReq.Method)
	require.Equal(t, "/api/selfcare/userDetails", gotReq.URL.Path)
	require.Equal(t, "no-cache", gotReq.Header.Get("cache-control"))
	require.Equal(t, testReferer, gotReq.Header.Get("referer"))
	require.Equal(t, testToken, gotReq.Header.Get("Authentication"))
	require.True(t, strings.HasPrefix(gotReq.Header.Get("Content-Type"), "multipart/form-data"))
	require.Empty(t, gotForm)
}

func TestAuthenticateSendsCredentialsWithoutToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "alice", r.FormValue("username"))
		require.Equal(t, "secret", r.FormValue("password"))
		require.Empty(t, r.Header.Get("Authentication"))
		fmt.Fprint(w, okEnvelope(crm.LoginResult{Token: "tok1", Profile: subscriber.Profile{Username: "alice"}}))
	}))
	defer srv.Close()

	c := newClient(t, testTenant(srv.URL))
	result, err := c.Authenticate(context.Background(), "alice", "secret")
	require.NoError(t, err)
	require.Equal(t, "tok1", result.Token)
}

func TestAuthenticateWithoutTokenInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okEnvelope(crm.LoginResult{}))
	}))
	defer srv.Close()

	c := newClient(t, testTenant(srv.URL))
	_, err := c.Authenticate(context.Background(), "alice", "secret")
	require.True(t, crm.IsBusiness(err))
}

func TestEnvelopeClassification(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		quirk    bool
		wantAuth bool
	}{
		{
			name:     "token expired",
			body:     `{"status":"error","message":"Token Expired","code":401}`,
			wantAuth: true,
		},
		{
			name:     "unauthorized",
			body:     `{"status":"error","message":"Unauthorized access","code":401}`,
			wantAuth: true,
		},
		{
			name:     "business error",
			body:     `{"status":"error","message":"No Complaints Found","code":200}`,
			wantAuth: false,
		},
		{
			name:     "password reject without quirk is business",
			body:     `{"status":"error","message":"Invalid Username or Password","code":401}`,
			quirk:    false,
			wantAuth: false,
		},
		{
			name:     "password reject with quirk is auth",
			body:     `{"status":"error","message":"Invalid Username or Password","code":401}`,
			quirk:    true,
			wantAuth: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			tenant := testTenant(srv.URL)
			tenant.PasswordRejectsAsAuthExpired = tc.quirk
			c := newClient(t, tenant)

			_, err := c.UserDetails(context.Background(), testToken)
			require.Error(t, err)
			require.Equal(t, tc.wantAuth, crm.IsAuthExpired(err))
			require.Equal(t, !tc.wantAuth, crm.IsBusiness(err))
		})
	}
}

func TestStatusOKAloneIsSuccess(t *testing.T) {
	// code is advisory: an ok status with a non-200 code still succeeds.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"ok","message":"","data":{"username":"alice"},"code":0}`)
	}))
	defer srv.Close()

	c := newClient(t, testTenant(srv.URL))
	profile, err := c.UserDetails(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Username)
}

func TestTransportFailureMapsToNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := newClient(t, testTenant(srv.URL))
	_, err := c.UserDetails(context.Background(), testToken)
	require.True(t, crm.IsNetwork(err))
	require.Equal(t, crm.NetworkMessage, err.Error(), "raw transport error never surfaces")
	require.False(t, crm.IsAuthExpired(err), "network failures are not auth-shaped")
}

func TestUnparseableResponseMapsToNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>upstream error</html>")
	}))
	defer srv.Close()

	c := newClient(t, testTenant(srv.URL))
	_, err := c.UserDetails(context.Background(), testToken)
	require.True(t, crm.IsNetwork(err))
}

func TestComboCodeRouting(t *testing.T) {
	var gotPath, gotCombo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPath = r.URL.Path
		gotCombo = r.FormValue("combo_code")
		fmt.Fprint(w, okEnvelope([]subscriber.LedgerEntry{}))
	}))
	defer srv.Close()

	tenant := testTenant(srv.URL)
	tenant.ComboCodes = map[string]string{tenants.EndpointLedger: "LGR01"}
	c := newClient(t, tenant)

	_, err := c.Ledger(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, "/api/selfcare/selfcareDropdown", gotPath)
	require.Equal(t, "LGR01", gotCombo)
}

func TestEndpointPathOverride(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, okEnvelope([]subscriber.Plan{}))
	}))
	defer srv.Close()

	tenant := testTenant(srv.URL)
	tenant.Endpoints = map[string]string{tenants.EndpointPlans: "/legacy/planList"}
	c := newClient(t, tenant)

	_, err := c.Plans(context.Background(), testToken)
	require.NoError(t, err)
	require.Equal(t, "/legacy/planList", gotPath)
}

func TestUploadDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, string(subscriber.DocumentIDProof), r.FormValue("doc_type"))

		file, header, err := r.FormFile("document")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "aadhaar.pdf", header.Filename)
		fmt.Fprint(w, okEnvelope(subscriber.Document{Verified: false}))
	}))
	defer srv.Close()

	c := newClient(t, testTenant(srv.URL))
	doc, err := c.UploadDocument(context.Background(), testToken, subscriber.DocumentIDProof, "aadhaar.pdf", strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
	require.Equal(t, "aadhaar.pdf", doc.FileName)
}

func TestNewRejectsBadTenant(t *testing.T) {
	_, err := crm.New(nil, zerolog.Nop())
	require.Error(t, err)

	_, err = crm.New(&tenants.Tenant{ID: "x", BaseURL: "ftp://nope"}, zerolog.Nop())
	require.Error(t, err)
}
