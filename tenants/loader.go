package tenants

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	ierrors "github.com/ispkit/selfcare/internal/errors"
)

var _ Repo = (*DirRepo)(nil)

// DirRepo is a Repo backed by a directory of per-tenant YAML descriptors,
// one file per tenant (the per-client config directory of the white-label
// builds). The directory is read once at load time.
type DirRepo struct {
	lock    sync.RWMutex
	tenants map[string]*Tenant
}

// LoadDir reads every *.yaml/*.yml file under dir into a DirRepo. A file
// that fails to parse or validate aborts the load: a misconfigured tenant
// must fail the build, not a subscriber's login.
func LoadDir(dir string) (*DirRepo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "[tenants.LoadDir] read dir")
	}
	repo := &DirRepo{tenants: make(map[string]*Tenant)}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "[tenants.LoadDir] read %s", entry.Name())
		}
		var t Tenant
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return nil, errors.Wrapf(err, "[tenants.LoadDir] parse %s", entry.Name())
		}
		if err := t.Validate(); err != nil {
			return nil, errors.Wrapf(err, "[tenants.LoadDir] validate %s", entry.Name())
		}
		repo.tenants[t.ID] = &t
	}
	return repo, nil
}

func (r *DirRepo) Upsert(tenantData *Tenant) error {
	if err := tenantData.Validate(); err != nil {
		return errors.Wrap(err, "[DirRepo.Upsert] validate")
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.tenants[tenantData.ID] = tenantData
	return nil
}

func (r *DirRepo) Delete(tenantID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.tenants, tenantID)
	return nil
}

func (r *DirRepo) Get(tenantID string) (*Tenant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	t, ok := r.tenants[tenantID]
	if !ok {
		return nil, errors.Wrapf(ierrors.ErrTenantNotFound, "%q", tenantID)
	}
	return t, nil
}

func (r *DirRepo) List(offset, limit int) ([]*Tenant, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	all := make([]*Tenant, 0, len(r.tenants))
	for _, t := range r.tenants {
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}
