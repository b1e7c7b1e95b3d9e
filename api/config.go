package api

import (
	"github.com/safing/mibis/config"
)

// Config Keys.
const (
	CfgListenAddressKey = "api/listen"
)

// DefaultListenAddress is the address the API listens on by default.
const DefaultListenAddress = "127.0.0.1:8117"

var listenAddressConfig config.StringOption

func registerConfig() error {
	err := config.Register(&config.Option{
		Name:            "API Address",
		Key:             CfgListenAddressKey,
		Description:     "Defines the IP address and port for the API.",
		OptType:         config.OptTypeString,
		ExpertiseLevel:  config.ExpertiseLevelDeveloper,
		DefaultValue:    DefaultListenAddress,
		ValidationRegex: "^([0-9]{1,3}.[0-9]{1,3}.[0-9]{1,3}.[0-9]{1,3}:[0-9]{1,5}|\\[[:0-9A-Fa-f]+\\]:[0-9]{1,5})$",
		RequiresRestart: true,
	})
	if err != nil {
		return err
	}
	listenAddressConfig = config.GetAsString(CfgListenAddressKey, DefaultListenAddress)

	return nil
}
