package channel

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/picopayments/picopayments-client/pkg/mpc"
	"github.com/stretchr/testify/require"
)

func TestSecretStore(t *testing.T) {
	store := NewSecretStore()

	hash, err := store.Generate()
	require.NoError(t, err)
	secret, err := store.Get(hash)
	require.NoError(t, err)
	require.Equal(t, hash, btcutil.Hash160(secret))

	tracked := btcutil.Hash160([]byte("tracked"))
	store.Track(tracked)
	_, err = store.Get(tracked)
	require.ErrorIs(t, err, ErrSecretUnknown)
	require.Nil(t, store.Lookup(tracked))

	_, err = store.Get(btcutil.Hash160([]byte("untracked")))
	require.ErrorIs(t, err, ErrSecretUntracked)

	require.Equal(t, tracked, store.Add([]byte("tracked")))
	require.Equal(t, []byte("tracked"), store.Lookup(tracked))

	// tracking a known hash keeps the preimage
	store.Track(hash)
	require.Equal(t, secret, store.Lookup(hash))
	require.Equal(t, 2, store.Len())
}

func TestSecretStoreJson(t *testing.T) {
	store := NewSecretStore()
	known, err := store.Generate()
	require.NoError(t, err)
	unknown := btcutil.Hash160([]byte("unknown"))
	store.Track(unknown)

	encoded, err := json.Marshal(store)
	require.NoError(t, err)

	var raw map[string]*string
	require.NoError(t, json.Unmarshal(encoded, &raw))
	require.Len(t, raw, 2)
	require.Nil(t, raw[hex.EncodeToString(unknown)])
	require.NotNil(t, raw[hex.EncodeToString(known)])

	decoded := &SecretStore{}
	require.NoError(t, json.Unmarshal(encoded, decoded))
	require.Equal(t, store.Lookup(known), decoded.Lookup(known))
	_, err = decoded.Get(unknown)
	require.ErrorIs(t, err, ErrSecretUnknown)

	t.Run("WrongPreimage", func(t *testing.T) {
		invalid := map[string]string{hex.EncodeToString(known): hex.EncodeToString([]byte("wrong"))}
		encoded, err := json.Marshal(invalid)
		require.NoError(t, err)
		require.ErrorIs(t, json.Unmarshal(encoded, &SecretStore{}), mpc.ErrInvalidSecret)
	})

	t.Run("InvalidHex", func(t *testing.T) {
		require.Error(t, json.Unmarshal([]byte(`{"zz": null}`), &SecretStore{}))
	})
}
