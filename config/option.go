package config

import (
	"regexp"
	"sync"
)

// OptionType defines the value type of an option.
type OptionType uint8

// Option Types.
const (
	OptTypeString      OptionType = 1
	OptTypeStringArray OptionType = 2
	OptTypeInt         OptionType = 3
	OptTypeBool        OptionType = 4
)

func getTypeName(t OptionType) string {
	switch t {
	case OptTypeString:
		return "string"
	case OptTypeStringArray:
		return "[]string"
	case OptTypeInt:
		return "int"
	case OptTypeBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ExpertiseLevel allows grouping options by user expertise.
type ExpertiseLevel uint8

// Expertise Level constants.
const (
	ExpertiseLevelUser      ExpertiseLevel = 0
	ExpertiseLevelExpert    ExpertiseLevel = 1
	ExpertiseLevelDeveloper ExpertiseLevel = 2
)

// Option describes a configuration option.
type Option struct {
	sync.Mutex

	// Name holds the name of the configuration options.
	// It should be human readable and is mainly used for
	// presentation purposes.
	Name string
	// Key holds the database path for the option. It should
	// follow the path format `category/sub/key`.
	Key string
	// Description holds a human readable description of the
	// option and what is does.
	Description string
	// OptType defines the type of the option.
	OptType OptionType
	// ExpertiseLevel can be used to set the required expertise
	// level for the option to be displayed to a user.
	ExpertiseLevel ExpertiseLevel
	// RequiresRestart should be set to true if a modification of
	// the options value requires a restart of the pipeline to
	// take effect.
	RequiresRestart bool
	// DefaultValue holds the default value of the option. Note that
	// this value can be overwritten during runtime (see activeDefaultValue).
	DefaultValue interface{}
	// ValidationRegex may contain a regular expression used to validate
	// the value of option. If the option type is set to OptTypeStringArray
	// the validation regex is applied to all entries of the string slice.
	ValidationRegex string

	activeValue         *valueCache
	activeDefaultValue  *valueCache
	activeFallbackValue *valueCache
	compiledRegex       *regexp.Regexp
}

// IsSetByUser returns whether the option has been set by the user.
func (option *Option) IsSetByUser() bool {
	option.Lock()
	defer option.Unlock()

	return option.activeValue != nil
}

// UserValue returns the value set by the user or nil if the value has not
// been changed from the default.
func (option *Option) UserValue() interface{} {
	option.Lock()
	defer option.Unlock()

	if option.activeValue == nil {
		return nil
	}
	return option.activeValue.getData(option)
}

// ActiveValue returns the effective value of the option.
func (option *Option) ActiveValue() interface{} {
	option.Lock()
	defer option.Unlock()

	return option.effectiveValue().getData(option)
}

func (option *Option) effectiveValue() *valueCache {
	switch {
	case option.activeValue != nil:
		return option.activeValue
	case option.activeDefaultValue != nil:
		return option.activeDefaultValue
	default:
		return option.activeFallbackValue
	}
}
