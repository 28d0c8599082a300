package transport

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/decentraminds/osmosis-streaming-driver/internal/config"
	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

var defaultSchemes = map[string][]string{
	WebsocketType: {"ws", "wss"},
	TCPType:       {"tcp"},
}

// BuildRegistry creates a Mux from the transport configuration.
// Without any configured transport, websocket (ws, wss) and raw TCP (tcp) are enabled.
func BuildRegistry(cfgs []config.TransportConfig) (*Mux, error) {
	if len(cfgs) == 0 {
		cfgs = []config.TransportConfig{
			{Name: WebsocketType, Type: WebsocketType},
			{Name: TCPType, Type: TCPType},
		}
	}

	mux := NewMux()
	for _, cfg := range cfgs {
		t, err := build(cfg)
		if err != nil {
			return nil, fmt.Errorf("building %s transport %q: %w", cfg.Type, cfg.Name, err)
		}
		schemes := cfg.Schemes
		if len(schemes) == 0 {
			schemes = defaultSchemes[cfg.Type]
		}
		for _, scheme := range schemes {
			mux.Handle(scheme, t)
		}
	}
	return mux, nil
}

func build(cfg config.TransportConfig) (core.Transport, error) {
	switch cfg.Type {
	case WebsocketType:
		var opts WebsocketConfig
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return NewWebsocket(opts), nil
	case TCPType:
		var opts TCPConfig
		if err := decodeOptions(cfg.Options, &opts); err != nil {
			return nil, err
		}
		return NewTCP(opts), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Type)
	}
}

func decodeOptions(input map[string]any, result any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           result,
	})
	if err != nil {
		return fmt.Errorf("creating options decoder: %w", err)
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("decoding options: %w", err)
	}
	return nil
}
