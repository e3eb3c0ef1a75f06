package types

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Cbor is the encoding used for every value the node persists or exchanges.
var Cbor = newCborHandler()

type cborHandler struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

func newCborHandler() cborHandler {
	// deterministic encoding: map keys are sorted so equal values give equal bytes
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborHandler{encMode: enc, decMode: dec}
}

func (c cborHandler) Marshal(v any) ([]byte, error) {
	return c.encMode.Marshal(v)
}

func (c cborHandler) Unmarshal(data []byte, v any) error {
	return c.decMode.Unmarshal(data, v)
}

func (c cborHandler) Encode(w io.Writer, v any) error {
	return c.encMode.NewEncoder(w).Encode(v)
}

func (c cborHandler) GetEncoder(w io.Writer) (*cbor.Encoder, error) {
	return c.encMode.NewEncoder(w), nil
}

func (c cborHandler) GetDecoder(r io.Reader) *cbor.Decoder {
	return c.decMode.NewDecoder(r)
}
