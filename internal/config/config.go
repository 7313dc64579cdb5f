// Package config loads the platform manifest: the services visible through
// the mailbox, the boot-data access policy and the simulator's runtime
// settings.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/calyptra/trustedge/secure/bootdata"
	"github.com/calyptra/trustedge/secure/spm"
)

// Config is the resolved manifest.
type Config struct {
	LogLevel      string
	PoolSize      int
	NSClientIDMin int32
	NSClientIDMax int32
	Services      []*spm.Service
	BootPolicy    []bootdata.PolicyEntry
}

// manifest is the raw TOML shape.
type manifest struct {
	LogLevel string `toml:"log_level"`

	Mailbox struct {
		ConnectionPool int   `toml:"connection_pool"`
		NSClientIDMin  int32 `toml:"ns_client_id_min"`
		NSClientIDMax  int32 `toml:"ns_client_id_max"`
	} `toml:"mailbox"`

	Services []serviceEntry `toml:"service"`

	BootPolicy []policyEntry `toml:"boot_policy"`
}

type serviceEntry struct {
	Name           string  `toml:"name"`
	SID            uint32  `toml:"sid"`
	Version        uint32  `toml:"version"`
	VersionPolicy  string  `toml:"version_policy"`
	Stateless      bool    `toml:"stateless"`
	NSClients      bool    `toml:"ns_clients"`
	AllowedClients []int32 `toml:"allowed_clients"`
}

type policyEntry struct {
	Partition int32  `toml:"partition"`
	Major     string `toml:"major"`
}

// Default returns the built-in manifest the simulator falls back to.
func Default() Config {
	return Config{
		LogLevel:      "info",
		PoolSize:      spm.DefaultPoolSize,
		NSClientIDMin: -0x4000,
		NSClientIDMax: -1,
	}
}

// Load reads a TOML manifest, overlaying defaults with whatever the file
// defines.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw manifest
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load manifest: %w", err)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("mailbox", "connection_pool") {
		cfg.PoolSize = raw.Mailbox.ConnectionPool
	}
	if cfg.PoolSize < 1 || cfg.PoolSize > spm.MaxPoolSize {
		return Config{}, fmt.Errorf("load manifest: connection_pool %d outside [1, %d]",
			cfg.PoolSize, spm.MaxPoolSize)
	}
	if meta.IsDefined("mailbox", "ns_client_id_min") {
		cfg.NSClientIDMin = raw.Mailbox.NSClientIDMin
	}
	if meta.IsDefined("mailbox", "ns_client_id_max") {
		cfg.NSClientIDMax = raw.Mailbox.NSClientIDMax
	}
	if cfg.NSClientIDMin > cfg.NSClientIDMax || cfg.NSClientIDMax >= 0 {
		return Config{}, fmt.Errorf("load manifest: non-secure client window [%d, %d] invalid",
			cfg.NSClientIDMin, cfg.NSClientIDMax)
	}

	for _, e := range raw.Services {
		svc, err := e.toService()
		if err != nil {
			return Config{}, fmt.Errorf("load manifest: %w", err)
		}
		cfg.Services = append(cfg.Services, svc)
	}

	for _, e := range raw.BootPolicy {
		major, err := parseMajor(e.Major)
		if err != nil {
			return Config{}, fmt.Errorf("load manifest: %w", err)
		}
		if e.Partition == bootdata.InvalidPartitionID {
			return Config{}, fmt.Errorf("load manifest: partition id %d is reserved", e.Partition)
		}
		cfg.BootPolicy = append(cfg.BootPolicy, bootdata.PolicyEntry{
			PartitionID: e.Partition,
			Major:       major,
		})
	}

	return cfg, nil
}

func (e serviceEntry) toService() (*spm.Service, error) {
	if e.SID == 0 {
		return nil, fmt.Errorf("service %q: sid required", e.Name)
	}
	policy := spm.VersionStrict
	switch strings.ToLower(strings.TrimSpace(e.VersionPolicy)) {
	case "", "strict":
	case "relaxed":
		policy = spm.VersionRelaxed
	default:
		return nil, fmt.Errorf("service %q: unknown version policy %q", e.Name, e.VersionPolicy)
	}
	return &spm.Service{
		SID:            e.SID,
		Name:           e.Name,
		Version:        e.Version,
		Policy:         policy,
		Stateless:      e.Stateless,
		NSClients:      e.NSClients,
		AllowedClients: e.AllowedClients,
	}, nil
}

func parseMajor(s string) (uint8, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "core":
		return bootdata.MajorCore, nil
	case "ias":
		return bootdata.MajorIAS, nil
	case "fwu":
		return bootdata.MajorFWU, nil
	case "mbs":
		return bootdata.MajorMBS, nil
	default:
		return bootdata.MajorInvalid, fmt.Errorf("unknown boot-data major %q", s)
	}
}
