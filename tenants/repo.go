package tenants

import "errors"

var (
	ErrMissingID      = errors.New("tenant id is required")
	ErrMissingBaseURL = errors.New("tenant base_url is required")
	ErrBadBaseURL     = errors.New("tenant base_url must be http(s)")
)

type Repo interface {
	Upsert(tenantData *Tenant) error
	Delete(tenantID string) error
	Get(tenantID string) (*Tenant, error)
	List(offset, limit int) ([]*Tenant, error)
}
