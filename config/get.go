package config

import (
	"sync"

	"github.com/tevino/abool"

	"github.com/safing/mibis/log"
)

type (
	// StringOption defines the returned function by GetAsString.
	StringOption func() string
	// StringArrayOption defines the returned function by GetAsStringArray.
	StringArrayOption func() []string
	// IntOption defines the returned function by GetAsInt.
	IntOption func() int64
	// BoolOption defines the returned function by GetAsBool.
	BoolOption func() bool
)

var (
	validityFlag     = abool.NewBool(true)
	validityFlagLock sync.RWMutex
)

// getValidityFlag returns a flag that signifies if the configuration has been changed. This flag must not be changed, only read.
func getValidityFlag() *abool.AtomicBool {
	validityFlagLock.RLock()
	defer validityFlagLock.RUnlock()
	return validityFlag
}

// signalChanges marks the configs validity flag as dirty.
func signalChanges() {
	validityFlagLock.Lock()
	defer validityFlagLock.Unlock()

	validityFlag.SetTo(false)
	validityFlag = abool.NewBool(true)
}

// GetAsString returns a function that returns the wanted string with high performance.
func GetAsString(name string, fallback string) StringOption {
	var lock sync.Mutex
	valid := getValidityFlag()
	value := findStringValue(name, fallback)
	return func() string {
		lock.Lock()
		defer lock.Unlock()
		if !valid.IsSet() {
			valid = getValidityFlag()
			value = findStringValue(name, fallback)
		}
		return value
	}
}

// GetAsStringArray returns a function that returns the wanted string slice with high performance.
func GetAsStringArray(name string, fallback []string) StringArrayOption {
	var lock sync.Mutex
	valid := getValidityFlag()
	value := findStringArrayValue(name, fallback)
	return func() []string {
		lock.Lock()
		defer lock.Unlock()
		if !valid.IsSet() {
			valid = getValidityFlag()
			value = findStringArrayValue(name, fallback)
		}
		return value
	}
}

// GetAsInt returns a function that returns the wanted int with high performance.
func GetAsInt(name string, fallback int64) IntOption {
	var lock sync.Mutex
	valid := getValidityFlag()
	value := findIntValue(name, fallback)
	return func() int64 {
		lock.Lock()
		defer lock.Unlock()
		if !valid.IsSet() {
			valid = getValidityFlag()
			value = findIntValue(name, fallback)
		}
		return value
	}
}

// GetAsBool returns a function that returns the wanted bool with high performance.
func GetAsBool(name string, fallback bool) BoolOption {
	var lock sync.Mutex
	valid := getValidityFlag()
	value := findBoolValue(name, fallback)
	return func() bool {
		lock.Lock()
		defer lock.Unlock()
		if !valid.IsSet() {
			valid = getValidityFlag()
			value = findBoolValue(name, fallback)
		}
		return value
	}
}

// findValue finds the effective value of an option.
func findValue(key string) interface{} {
	option, err := GetOption(key)
	if err != nil {
		log.Errorf("config: request for unregistered option: %s", key)
		return nil
	}

	return option.ActiveValue()
}

// findStringValue validates and returns the value with the given key.
func findStringValue(key string, fallback string) (value string) {
	v, ok := findValue(key).(string)
	if ok {
		return v
	}
	return fallback
}

// findStringArrayValue validates and returns the value with the given key.
func findStringArrayValue(key string, fallback []string) (value []string) {
	v, ok := findValue(key).([]string)
	if ok {
		return v
	}
	return fallback
}

// findIntValue validates and returns the value with the given key.
func findIntValue(key string, fallback int64) (value int64) {
	v, ok := findValue(key).(int64)
	if ok {
		return v
	}
	return fallback
}

// findBoolValue validates and returns the value with the given key.
func findBoolValue(key string, fallback bool) (value bool) {
	v, ok := findValue(key).(bool)
	if ok {
		return v
	}
	return fallback
}
