package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func registerTestOptions(t *testing.T, prefix string) {
	t.Helper()

	require.NoError(t, Register(&Option{
		Name:            "Monkey",
		Key:             prefix + "/monkey",
		Description:     "Monkey business.",
		OptType:         OptTypeString,
		DefaultValue:    "0",
		ValidationRegex: "^[0-9]$",
	}))
	require.NoError(t, Register(&Option{
		Name:            "Elephant",
		Key:             prefix + "/zoo/elephant",
		Description:     "Counts elephants.",
		OptType:         OptTypeInt,
		DefaultValue:    1048577,
		ValidationRegex: "^[0-9]+$",
	}))
	require.NoError(t, Register(&Option{
		Name:         "Hot",
		Key:          prefix + "/hot",
		Description:  "Is it hot?",
		OptType:      OptTypeBool,
		DefaultValue: false,
	}))
	require.NoError(t, Register(&Option{
		Name:         "Zebras",
		Key:          prefix + "/zebras",
		Description:  "Zebra colors.",
		OptType:      OptTypeStringArray,
		DefaultValue: []string{"black"},
	}))
}

func TestRegister(t *testing.T) {
	registerTestOptions(t, "register")

	// duplicate keys are refused
	err := Register(&Option{
		Name:         "Hot",
		Key:          "register/hot",
		Description:  "Is it hot?",
		OptType:      OptTypeBool,
		DefaultValue: true,
	})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	// incomplete options are refused
	err = Register(&Option{Key: "register/incomplete"})
	var ioe *InvalidOptionError
	assert.ErrorAs(t, err, &ioe)

	// defaults must pass validation
	err = Register(&Option{
		Name:            "Bad Default",
		Key:             "register/bad",
		Description:     "Default does not match regex.",
		OptType:         OptTypeString,
		DefaultValue:    "abc",
		ValidationRegex: "^[0-9]$",
	})
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = GetOption("register/missing")
	assert.ErrorIs(t, err, ErrUnknownOption)
}

func TestGetAndSet(t *testing.T) {
	registerTestOptions(t, "get")

	monkey := GetAsString("get/monkey", "none")
	elephant := GetAsInt("get/zoo/elephant", -1)
	hot := GetAsBool("get/hot", true)
	zebras := GetAsStringArray("get/zebras", nil)
	missing := GetAsInt("get/missing", 42)

	assert.Equal(t, "0", monkey())
	assert.Equal(t, int64(1048577), elephant())
	assert.False(t, hot())
	assert.Equal(t, []string{"black"}, zebras())
	assert.Equal(t, int64(42), missing())

	require.NoError(t, SetConfigOption("get/monkey", "3"))
	require.NoError(t, SetConfigOption("get/hot", true))
	require.NoError(t, SetConfigOption("get/zoo/elephant", float64(33)))
	require.NoError(t, SetConfigOption("get/zebras", []interface{}{"black", "white"}))
	assert.Equal(t, "3", monkey())
	assert.True(t, hot())
	assert.Equal(t, int64(33), elephant())
	assert.Equal(t, []string{"black", "white"}, zebras())

	// invalid values are refused and do not change the value
	assert.ErrorIs(t, SetConfigOption("get/monkey", "33"), ErrInvalidData)
	assert.ErrorIs(t, SetConfigOption("get/monkey", 3), ErrInvalidData)
	assert.ErrorIs(t, SetConfigOption("get/zoo/elephant", 1.5), ErrInvalidData)
	assert.Equal(t, "3", monkey())

	// default config is used when there is no user value
	require.NoError(t, SetDefaultConfigOption("get/monkey", "7"))
	require.NoError(t, SetConfigOption("get/monkey", nil))
	assert.Equal(t, "7", monkey())
	require.NoError(t, SetDefaultConfigOption("get/monkey", nil))
	assert.Equal(t, "0", monkey())
}

func TestFiles(t *testing.T) {
	registerTestOptions(t, "files")
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
files:
  monkey: "5"
  zoo:
    elephant: 2049
`), 0o0600))

	require.NoError(t, LoadFile(yamlPath))
	assert.Equal(t, "5", GetAsString("files/monkey", "")())
	assert.Equal(t, int64(2049), GetAsInt("files/zoo/elephant", 0)())

	exported, err := ExportJSON(true)
	require.NoError(t, err)
	assert.Equal(t, "5", gjson.GetBytes(exported, "files.monkey").String())
	assert.Equal(t, int64(2049), gjson.GetBytes(exported, "files.zoo.elephant").Int())
	assert.False(t, gjson.GetBytes(exported, "files.hot").Exists())

	all, err := ExportJSON(false)
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(all, "files.hot").Exists())

	// round trip through a json file
	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, SaveFile(jsonPath))
	require.NoError(t, SetConfigOption("files/monkey", "9"))
	require.NoError(t, LoadFile(jsonPath))
	assert.Equal(t, "5", GetAsString("files/monkey", "")())

	// unknown keys and invalid values are reported together
	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"files": {"monkey": "x"}, "nope": 1}`), 0o0600))
	err = LoadFile(badPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidData)
	assert.ErrorIs(t, err, ErrUnknownOption)

	assert.ErrorIs(t, LoadFile(filepath.Join(dir, "config.toml")), os.ErrNotExist)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), nil, 0o0600))
	assert.ErrorIs(t, LoadFile(filepath.Join(dir, "config.toml")), ErrUnknownFormat)
}

func TestJSONToMap(t *testing.T) {
	t.Parallel()

	m, err := JSONToMap([]byte(`{"a": {"b": {"c": 1}}, "d/e": "x", "f": [1, 2]}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"a/b/c": float64(1),
		"d/e":   "x",
		"f":     []interface{}{float64(1), float64(2)},
	}, m)

	_, err = JSONToMap([]byte(`[1]`))
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = JSONToMap([]byte(`{`))
	assert.ErrorIs(t, err, ErrInvalidData)
}
