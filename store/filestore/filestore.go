// Package filestore is a file-backed implementation of store.KV. The whole
// keyspace is one JSON document sealed with ChaCha20-Poly1305 under a
// caller-supplied 32-byte key, mirroring the encrypted device storage the
// mobile clients use. A corrupt or undecryptable file opens as an empty
// store rather than failing: local corruption must never lock the user out.
package filestore

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ispkit/selfcare/store"
)

var _ store.KV = (*Store)(nil)

// Store persists key-value pairs in a single encrypted file.
type Store struct {
	path string
	key  []byte

	lock sync.Mutex
	data map[string]string
}

// Open loads the store at path, decrypting with key (32 bytes). A missing,
// corrupt, or undecryptable file yields an empty store.
func Open(path string, key []byte) (*Store, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("[filestore.Open] key must be %d bytes", chacha20poly1305.KeySize)
	}
	s := &Store{
		path: path,
		key:  append([]byte(nil), key...),
		data: make(map[string]string),
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, errors.Wrap(err, "[filestore.Open] read")
	}
	if plain, err := s.unseal(raw); err == nil {
		var data map[string]string
		if json.Unmarshal(plain, &data) == nil && data != nil {
			s.data = data
		}
	}
	return s, nil
}

// Get implements store.KV.
func (s *Store) Get(key string) (string, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

// Set implements store.KV. The file is rewritten synchronously so a process
// kill never loses an acknowledged write.
func (s *Store) Set(key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.data[key] = value
	return s.flush()
}

// Delete implements store.KV.
func (s *Store) Delete(key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

// Keys implements store.KV.
func (s *Store) Keys(prefix string) ([]string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Store) flush() error {
	plain, err := json.Marshal(s.data)
	if err != nil {
		return errors.Wrap(err, "[filestore.flush] marshal")
	}
	sealed, err := s.seal(plain)
	if err != nil {
		return errors.Wrap(err, "[filestore.flush] seal")
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "[filestore.flush] mkdir")
	}
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return errors.Wrap(err, "[filestore.flush] write")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "[filestore.flush] rename")
	}
	return nil
}

func (s *Store) seal(plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plain, nil), nil
}

func (s *Store) unseal(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed blob too short")
	}
	nonce, box := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, box, nil)
}
