package dsd

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testReport struct {
	Name    string            `json:"name"`
	Bits    uint64            `json:"bits"`
	Rate    float64           `json:"rate"`
	Modes   []string          `json:"modes"`
	Labels  map[string]string `json:"labels"`
	Skipped bool              `json:"skipped"`
}

func TestConversion(t *testing.T) {
	t.Parallel()

	subject := &testReport{
		Name:   "run",
		Bits:   1048576,
		Rate:   0.5,
		Modes:  []string{"dual", "optimized"},
		Labels: map[string]string{"source": "jitter"},
	}

	for _, format := range []SerializationFormat{JSON, CBOR, MsgPack, YAML, AUTO} {
		data, err := Dump(subject, format)
		require.NoError(t, err, format.String())

		loaded := &testReport{}
		loadedFormat, err := Load(data, loaded)
		require.NoError(t, err, format.String())
		assert.Equal(t, subject, loaded, format.String())

		if format == AUTO {
			assert.Equal(t, DefaultSerializationFormat, loadedFormat)
		} else {
			assert.Equal(t, format, loadedFormat)
		}
	}
}

func TestFormatErrors(t *testing.T) {
	t.Parallel()

	_, err := Dump("abc", SerializationFormat(99))
	assert.ErrorIs(t, err, ErrIncompatibleFormat)
	_, err = Dump("abc", RAW)
	assert.ErrorIs(t, err, ErrIncompatibleFormat)

	raw, err := DumpWithoutIdentifier([]byte("abc"), RAW, "")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), raw)

	_, err = Load([]byte{'J'}, &testReport{})
	assert.ErrorIs(t, err, ErrNoMoreSpace)
	_, err = Load([]byte{'Q', '{', '}'}, &testReport{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = Load([]byte("J{broken"), &testReport{})
	assert.Error(t, err)

	format, err := ParseFormat(".yml")
	require.NoError(t, err)
	assert.Equal(t, YAML, format)
	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	indented, err := DumpWithoutIdentifier(map[string]int{"a": 1}, JSON, "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(indented))
}

func TestDumpToHTTPResponse(t *testing.T) {
	t.Parallel()

	subject := &testReport{Name: "http"}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "application/cbor")
	w := httptest.NewRecorder()
	require.NoError(t, DumpToHTTPResponse(w, r, subject, JSON))
	assert.Equal(t, "application/cbor", w.Header().Get("Content-Type"))

	loaded := &testReport{}
	require.NoError(t, LoadAsFormat(w.Body.Bytes(), CBOR, loaded))
	assert.Equal(t, subject, loaded)

	// unknown accept header falls back
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "text/html")
	w = httptest.NewRecorder()
	require.NoError(t, DumpToHTTPResponse(w, r, subject, JSON))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"name":"http","bits":0,"rate":0,"modes":null,"labels":null,"skipped":false}`, w.Body.String())
}
