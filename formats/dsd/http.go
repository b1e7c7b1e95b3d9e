package dsd

import (
	"fmt"
	"net/http"
	"strings"
)

// Mime types of the serialization formats.
var (
	FormatToMimeType = map[SerializationFormat]string{
		JSON:    "application/json; charset=utf-8",
		CBOR:    "application/cbor",
		MsgPack: "application/msgpack",
		YAML:    "application/yaml",
	}
	MimeTypeToFormat = map[string]SerializationFormat{
		"application/json":    JSON,
		"application/cbor":    CBOR,
		"application/msgpack": MsgPack,
		"application/yaml":    YAML,
	}
)

// DumpToHTTPResponse serializes t in the format requested by the Accept
// header of the request, or the fallback format, and writes it as response.
func DumpToHTTPResponse(w http.ResponseWriter, r *http.Request, t interface{}, fallbackFormat SerializationFormat) error {
	// Get format from Accept header.
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, ";") {
		accept = strings.SplitN(accept, ";", 2)[0]
	}
	format, ok := MimeTypeToFormat[strings.TrimSpace(accept)]
	if !ok {
		format = fallbackFormat
	}
	mimeType, ok := FormatToMimeType[format]
	if !ok {
		return ErrIncompatibleFormat
	}

	// Serialize data.
	data, err := DumpWithoutIdentifier(t, format, "")
	if err != nil {
		return fmt.Errorf("dsd: failed to serialize: %w", err)
	}

	// Write data to response
	w.Header().Set("Content-Type", mimeType)
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("dsd: failed to write response: %w", err)
	}
	return nil
}
