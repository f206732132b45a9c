package channel

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

var (
	// ErrSecretUnknown is returned for a tracked hash whose preimage was not disclosed yet.
	ErrSecretUnknown = errors.New("secret preimage unknown")
	// ErrSecretUntracked is returned for a hash that was never requested.
	ErrSecretUntracked = errors.New("secret hash not tracked")
)

// SecretStore maps hash160 to preimage. Entries are never removed and a
// known preimage is never replaced.
type SecretStore struct {
	secrets map[string][]byte
}

func NewSecretStore() *SecretStore {
	return &SecretStore{secrets: make(map[string][]byte)}
}

func (store *SecretStore) init() {
	if store.secrets == nil {
		store.secrets = make(map[string][]byte)
	}
}

// Generate creates a new secret, stores it and returns its hash.
func (store *SecretStore) Generate() ([]byte, error) {
	secret, err := mpc.NewSecret()
	if err != nil {
		return nil, err
	}
	return store.Add(secret.Value), nil
}

func (store *SecretStore) Add(secret []byte) []byte {
	store.init()
	hash := btcutil.Hash160(secret)
	store.secrets[string(hash)] = slices.Clone(secret)
	return hash
}

// Track registers a hash whose preimage is expected to be disclosed later.
func (store *SecretStore) Track(hash []byte) {
	store.init()
	if _, ok := store.secrets[string(hash)]; !ok {
		store.secrets[string(hash)] = nil
	}
}

func (store *SecretStore) Get(hash []byte) ([]byte, error) {
	secret, ok := store.secrets[string(hash)]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrSecretUntracked, hash)
	}
	if secret == nil {
		return nil, fmt.Errorf("%w: %x", ErrSecretUnknown, hash)
	}
	return secret, nil
}

// Lookup returns the preimage if it is known and nil otherwise.
func (store *SecretStore) Lookup(hash []byte) []byte {
	secret, _ := store.Get(hash)
	return secret
}

func (store *SecretStore) Len() int {
	return len(store.secrets)
}

func (store *SecretStore) MarshalJSON() ([]byte, error) {
	encoded := make(map[string]*string, len(store.secrets))
	for hash, secret := range store.secrets {
		key := hex.EncodeToString([]byte(hash))
		if secret == nil {
			encoded[key] = nil
			continue
		}
		value := hex.EncodeToString(secret)
		encoded[key] = &value
	}
	return json.Marshal(encoded)
}

func (store *SecretStore) UnmarshalJSON(data []byte) error {
	var encoded map[string]*string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	store.secrets = make(map[string][]byte, len(encoded))
	for key, value := range encoded {
		hash, err := hex.DecodeString(key)
		if err != nil {
			return fmt.Errorf("invalid secret hash %s: %w", key, err)
		}
		if value == nil {
			store.Track(hash)
			continue
		}
		secret, err := hex.DecodeString(*value)
		if err != nil {
			return fmt.Errorf("invalid secret for %s: %w", key, err)
		}
		if computed := btcutil.Hash160(secret); string(computed) != string(hash) {
			return fmt.Errorf("%w: stored secret for %s", mpc.ErrInvalidSecret, key)
		}
		store.secrets[string(hash)] = secret
	}
	return nil
}
