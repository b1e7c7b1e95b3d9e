package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/safing/mibis/log"
)

// LoadFile loads the user config from a json or yaml file. Nested objects
// address options by their key path, so `{"trng": {"mixer_mode": "single"}}`
// sets the option `trng/mixer_mode`.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
	case ".yaml", ".yml":
		data, err = yaml.YAMLToJSON(data)
		if err != nil {
			return fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	newValues, err := JSONToMap(data)
	if err != nil {
		return fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	log.Infof("config: loaded %d values from %s", len(newValues), path)
	return setConfig(newValues)
}

// SaveFile saves the values set by the user to a json or yaml file.
func SaveFile(path string) error {
	data, err := ExportJSON(true)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
	case ".yaml", ".yml":
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	return os.WriteFile(path, data, 0o0600)
}

// JSONToMap parses and flattens a hierarchical json object.
func JSONToMap(jsonData []byte) (map[string]interface{}, error) {
	if !gjson.ValidBytes(jsonData) {
		return nil, fmt.Errorf("%w: invalid json", ErrInvalidData)
	}
	root := gjson.ParseBytes(jsonData)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: config must be a json object", ErrInvalidData)
	}

	loaded := make(map[string]interface{})
	flatten(loaded, root, "")
	return loaded, nil
}

func flatten(values map[string]interface{}, obj gjson.Result, subKey string) {
	obj.ForEach(func(key, value gjson.Result) bool {
		// get next level key
		subbedKey := key.String()
		if subKey != "" {
			subbedKey = subKey + "/" + subbedKey
		}

		// check for next sub object
		if value.IsObject() {
			flatten(values, value, subbedKey)
		} else {
			values[subbedKey] = value.Value()
		}
		return true
	})
}

// ExportJSON returns the configuration as a hierarchical json object. If
// userOnly is set, only values set by the user are included.
func ExportJSON(userOnly bool) ([]byte, error) {
	data := []byte("{}")
	for _, option := range ExportOptions() {
		var value interface{}
		if userOnly {
			value = option.UserValue()
			if value == nil {
				continue
			}
		} else {
			value = option.ActiveValue()
		}

		var err error
		data, err = sjson.SetBytes(data, jsonPath(option.Key), value)
		if err != nil {
			return nil, fmt.Errorf("config: failed to export %s: %w", option.Key, err)
		}
	}
	return data, nil
}

// jsonPath converts an option key to a gjson/sjson path.
func jsonPath(key string) string {
	parts := strings.Split(key, "/")
	for i, part := range parts {
		parts[i] = strings.ReplaceAll(part, ".", `\.`)
	}
	return strings.Join(parts, ".")
}
