package types

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Bytes is a byte slice which is rendered as 0x prefixed hex string in text
// based encodings (JSON, YAML) and as a byte string in CBOR.
type Bytes []byte

func (b Bytes) MarshalText() ([]byte, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return hexutil.Bytes(b).MarshalText()
}

func (b *Bytes) UnmarshalText(src []byte) error {
	if len(src) == 0 {
		*b = nil
		return nil
	}
	var h hexutil.Bytes
	if err := h.UnmarshalText(src); err != nil {
		return err
	}
	*b = Bytes(h)
	return nil
}

func (b Bytes) String() string {
	return hexutil.Encode(b)
}
