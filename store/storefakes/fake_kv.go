package storefakes

import (
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/ispkit/selfcare/store"
)

var _ store.KV = (*FakeKV)(nil)

// FakeKV is an in-memory store.KV for tests. FailReads/FailWrites make
// every corresponding operation return an error.
type FakeKV struct {
	lock       sync.RWMutex
	data       map[string]string
	FailReads  bool
	FailWrites bool
}

func NewFakeKV() *FakeKV {
	return &FakeKV{data: make(map[string]string)}
}

func (kv *FakeKV) Get(key string) (string, bool, error) {
	kv.lock.RLock()
	defer kv.lock.RUnlock()
	if kv.FailReads {
		return "", false, errors.New("read failed")
	}
	v, ok := kv.data[key]
	return v, ok, nil
}

func (kv *FakeKV) Set(key, value string) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	if kv.FailWrites {
		return errors.New("write failed")
	}
	kv.data[key] = value
	return nil
}

func (kv *FakeKV) Delete(key string) error {
	kv.lock.Lock()
	defer kv.lock.Unlock()
	if kv.FailWrites {
		return errors.New("write failed")
	}
	delete(kv.data, key)
	return nil
}

func (kv *FakeKV) Keys(prefix string) ([]string, error) {
	kv.lock.RLock()
	defer kv.lock.RUnlock()
	if kv.FailReads {
		return nil, errors.New("read failed")
	}
	keys := make([]string, 0, len(kv.data))
	for k := range kv.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Len returns the number of stored keys.
func (kv *FakeKV) Len() int {
	kv.lock.RLock()
	defer kv.lock.RUnlock()
	return len(kv.data)
}
