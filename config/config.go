// Package config recognizes the engine configuration options from spec
// §6, sourced the way phenix/cmd/root.go sources its own settings: a
// config file and environment variables layered over defaults through
// spf13/viper. Unlike phenix's single process-global viper.Viper,
// each Load call gets its own instance so multiple engines in one
// process never share config state (spec §5).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nullchannel/relaynet/internal/relaynet"
)

// MessageSide mirrors relaynet.Side for the config surface so callers
// don't need to import the internal package just to express it in YAML.
type MessageSide = relaynet.Side

// ControlDeclaration is one entry of spec §6's "Control-handler
// declaration" configuration option.
type ControlDeclaration struct {
	Key            uint16
	ExpectedLength int
	Side           MessageSide
	RequiredFlags  relaynet.Flags
}

// Options is the recognized-names table from spec §6, already translated
// into typed Go values.
type Options struct {
	Port               uint16
	UseIPv4            bool
	MaxPlayers         int
	StopOnBindFailure  bool
	MessageSide        MessageSide
	ControlHandlers    []ControlDeclaration // not read by Load or LoadDefault; always empty in their result
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", 7777)
	v.SetDefault("use_ipv4", true)
	v.SetDefault("max_players", 64)
	v.SetDefault("stop_on_bind_failure", true)
	v.SetDefault("message_side", "any")
}

// Load builds an Options from the defaults, a config file (if path != ""),
// and environment variables prefixed RELAYNET_.
func Load(path string) (Options, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix("relaynet")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Options{}, fmt.Errorf("reading config %v: %w", path, err)
		}
	}

	return fromViper(v)
}

// LoadDefault builds an Options from defaults and environment variables
// only, with no config file.
func LoadDefault() (Options, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix("relaynet")
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Options, error) {
	maxPlayers := v.GetInt("max_players")
	if maxPlayers <= 0 {
		return Options{}, fmt.Errorf("max_players must be > 0, got %v", maxPlayers)
	}

	side, err := parseSide(v.GetString("message_side"))
	if err != nil {
		return Options{}, err
	}

	return Options{
		Port:              uint16(v.GetUint32("port")),
		UseIPv4:           v.GetBool("use_ipv4"),
		MaxPlayers:        maxPlayers,
		StopOnBindFailure: v.GetBool("stop_on_bind_failure"),
		MessageSide:       side,
	}, nil
}

func parseSide(s string) (MessageSide, error) {
	switch strings.ToLower(s) {
	case "none":
		return relaynet.SideNone, nil
	case "client":
		return relaynet.SideClient, nil
	case "server":
		return relaynet.SideServer, nil
	case "common":
		return relaynet.SideCommon, nil
	case "any", "":
		return relaynet.SideAny, nil
	}
	return 0, fmt.Errorf("invalid message_side %q", s)
}
