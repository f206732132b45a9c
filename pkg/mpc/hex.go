package mpc

import "encoding/hex"

// HexString is binary data that is hex encoded in JSON, which is how the hub
// exchanges scripts, hashes and secrets.
type HexString []byte

func (s *HexString) UnmarshalText(data []byte) (err error) {
	*s, err = hex.DecodeString(string(data))
	return err
}

func (s HexString) MarshalText() ([]byte, error) {
	result := make([]byte, hex.EncodedLen(len(s)))
	hex.Encode(result, s)
	return result, nil
}

func (s HexString) String() string {
	return hex.EncodeToString(s)
}
