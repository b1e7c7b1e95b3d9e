package api

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/safing/mibis/rng"
	"github.com/safing/mibis/trng"
)

// MaxRandomBytes is the maximum number of random bytes served per request.
const MaxRandomBytes = 1 << 20

func registerEndpoints() error {
	if err := registerMetaEndpoints(); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "random/{n:[0-9]+}",
		DataFunc:    randomBytes,
		Name:        "Random Bytes",
		Description: "Returns n bytes from the RNG, which is reseeded with conditioned output.",
		Parameters: []Parameter{{
			Method:      http.MethodGet,
			Field:       "format",
			Value:       "hex",
			Description: "Return the bytes hex encoded.",
		}},
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "status",
		StructFunc:  status,
		Name:        "Conditioner Status",
		Description: "Returns the state and counters of the running conditioner.",
	}); err != nil {
		return err
	}

	if err := RegisterEndpoint(Endpoint{
		Path:        "stream",
		HandlerFunc: streamOutput,
		Name:        "Output Stream",
		Description: "Streams the packed conditioned output as binary websocket messages.",
	}); err != nil {
		return err
	}

	return nil
}

func randomBytes(ar *Request) (data []byte, err error) {
	n, err := strconv.Atoi(ar.URLVars["n"])
	if err != nil || n <= 0 || n > MaxRandomBytes {
		return nil, ErrorWithStatus(http.StatusBadRequest, "n must be between 1 and %d", MaxRandomBytes)
	}

	data, err = rng.Bytes(n)
	if err != nil {
		return nil, ErrorWithStatus(http.StatusServiceUnavailable, "rng: %s", err)
	}

	if ar.Request.URL.Query().Get("format") == "hex" {
		return []byte(hex.EncodeToString(data)), nil
	}
	return data, nil
}

func status(ar *Request) (i interface{}, err error) {
	return trng.GetStatus(), nil
}
