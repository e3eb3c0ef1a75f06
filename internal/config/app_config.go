package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/peer"
	"gopkg.in/yaml.v3"

	"github.com/alphabill-org/bftnode/internal/types"
)

var (
	ErrConfigIsNil          = errors.New("node configuration is nil")
	errInvalidServerAddr    = errors.New("invalid server address")
	errInvalidPublicAddr    = errors.New("invalid public address")
	errInvalidMetricsAddr   = errors.New("invalid metrics server address")
	errMaxPayloadSizeZero   = errors.New("max payload size must be greater than zero")
	errInvalidInboundPeer   = errors.New("invalid static inbound peer")
	errInvalidOutboundPeer  = errors.New("invalid static outbound peer")
	errDuplicateInboundPeer = errors.New("duplicate static inbound peer")
)

/*
AppConfig is the configuration of the node process: network endpoints, the
genesis of the chain the node participates in and gossip limits.
*/
type AppConfig struct {
	_ struct{} `cbor:",toarray"`

	// ServerAddr is the address the node listens on.
	ServerAddr netip.AddrPort `yaml:"serverAddr"`
	// PublicAddr is the address other nodes should use to connect to the node.
	PublicAddr netip.AddrPort `yaml:"publicAddr"`
	// MetricsServerAddr is optional, when set metrics are exposed on that address.
	MetricsServerAddr *netip.AddrPort `yaml:"metricsServerAddr,omitempty"`

	Genesis *types.GenesisRecord `yaml:"genesis"`

	// GossipDynamicInboundLimit is max number of inbound connections from
	// peers which are not in the GossipStaticInbound list.
	GossipDynamicInboundLimit uint64 `yaml:"gossipDynamicInboundLimit"`
	// GossipStaticInbound are peers which are always allowed to connect.
	GossipStaticInbound []peer.ID `yaml:"gossipStaticInbound"`
	// GossipStaticOutbound are peers the node always maintains connection to.
	GossipStaticOutbound map[peer.ID]netip.AddrPort `yaml:"gossipStaticOutbound"`

	MaxPayloadSize uint64 `yaml:"maxPayloadSize"`
}

func (c *AppConfig) Validate() error {
	if c == nil {
		return ErrConfigIsNil
	}
	if !c.ServerAddr.IsValid() {
		return errInvalidServerAddr
	}
	if !c.PublicAddr.IsValid() {
		return errInvalidPublicAddr
	}
	if c.MetricsServerAddr != nil && !c.MetricsServerAddr.IsValid() {
		return errInvalidMetricsAddr
	}
	if err := c.Genesis.IsValid(); err != nil {
		return fmt.Errorf("invalid genesis: %w", err)
	}
	if c.MaxPayloadSize == 0 {
		return errMaxPayloadSizeZero
	}

	seen := make(map[peer.ID]struct{}, len(c.GossipStaticInbound))
	for i, id := range c.GossipStaticInbound {
		if err := id.Validate(); err != nil {
			return fmt.Errorf("%w %d: %w", errInvalidInboundPeer, i, err)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w %s", errDuplicateInboundPeer, id)
		}
		seen[id] = struct{}{}
	}
	for id, addr := range c.GossipStaticOutbound {
		if err := id.Validate(); err != nil {
			return fmt.Errorf("%w: %w", errInvalidOutboundPeer, err)
		}
		if !addr.IsValid() {
			return fmt.Errorf("%w %s: address is not valid", errInvalidOutboundPeer, id)
		}
	}
	return nil
}

/*
Load reads node configuration from YAML file. Unknown fields are rejected and
the configuration must be valid.
*/
func Load(fileName string) (*AppConfig, error) {
	data, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return nil, fmt.Errorf("reading configuration file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	cfg := &AppConfig{}
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration file %s: %w", fileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", fileName, err)
	}
	return cfg, nil
}

// Save writes "cfg" into YAML file, file is created when it doesn't exist.
func Save(fileName string, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fileName), 0700); err != nil {
		return fmt.Errorf("creating directory for configuration file: %w", err)
	}
	return os.WriteFile(fileName, data, 0600) // -rw-------
}
