package config

import (
	"github.com/hashicorp/go-multierror"
)

// setConfig sets the (prioritized) user defined config. Options missing
// from newValues are reset to their defaults.
func setConfig(newValues map[string]interface{}) error {
	return replaceValues(newValues, func(option *Option) **valueCache {
		return &option.activeValue
	})
}

// SetDefaultConfig sets the (fallback) default config.
func SetDefaultConfig(newValues map[string]interface{}) error {
	return replaceValues(newValues, func(option *Option) **valueCache {
		return &option.activeDefaultValue
	})
}

func replaceValues(newValues map[string]interface{}, target func(*Option) **valueCache) error {
	var errs *multierror.Error

	// RLock the options because we are not adding or removing
	// options from the registration but rather only update the
	// options value which is guarded by the option's lock itself
	optionsLock.RLock()
	for key, option := range options {
		newValue, ok := newValues[key]

		option.Lock()
		slot := target(option)
		*slot = nil
		if ok {
			valueCache, err := validateValue(option, newValue)
			if err == nil {
				*slot = valueCache
			} else {
				errs = multierror.Append(errs, err)
			}
		}
		option.Unlock()
	}
	optionsLock.RUnlock()

	for key := range newValues {
		if _, err := GetOption(key); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	signalChanges()

	return errs.ErrorOrNil()
}

// SetConfigOption sets a single value in the (prioritized) user defined config.
func SetConfigOption(key string, value interface{}) error {
	return setOptionValue(key, value, func(option *Option) **valueCache {
		return &option.activeValue
	})
}

// SetDefaultConfigOption sets a single value in the (fallback) default config.
func SetDefaultConfigOption(key string, value interface{}) error {
	return setOptionValue(key, value, func(option *Option) **valueCache {
		return &option.activeDefaultValue
	})
}

func setOptionValue(key string, value interface{}, target func(*Option) **valueCache) (err error) {
	option, err := GetOption(key)
	if err != nil {
		return err
	}

	option.Lock()
	slot := target(option)
	if value == nil {
		*slot = nil
	} else {
		var valueCache *valueCache
		valueCache, err = validateValue(option, value)
		if err == nil {
			*slot = valueCache
		}
	}
	option.Unlock()

	if err != nil {
		return err
	}

	// finalize change, activate triggers
	signalChanges()
	return nil
}
