package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/audiolibrelab/dialmix/internal/dial"
	"github.com/audiolibrelab/dialmix/internal/mapping"
	"github.com/audiolibrelab/dialmix/internal/wire"
)

const DefaultProfile = "default"

// DefaultIntervalMs is the device pause between snapshots. Without mute
// feedback the host never paces the device, so the pause must stay above
// the host's cycle time (a few pactl runs) or frames queue up in the port.
const DefaultIntervalMs = 250

type RootConfig struct {
	ActiveProfile string              `mapstructure:"active_profile" yaml:"active_profile"`
	Audio         AudioConfig         `mapstructure:"audio" yaml:"audio"`
	Serial        SerialConfig        `mapstructure:"serial" yaml:"serial"`
	Device        DeviceConfig        `mapstructure:"device" yaml:"device"`
	Profiles      map[string]*Profile `mapstructure:"profiles" yaml:"profiles"`
}

// Profile is a named set of dial bindings.
type Profile struct {
	Dials []DialConfig `mapstructure:"dials" yaml:"dials"`
}

// DialConfig describes one binding. Exactly one of Pattern and CatchAll must
// be set.
type DialConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Pattern  string `mapstructure:"pattern" yaml:"pattern,omitempty"`
	CatchAll bool   `mapstructure:"catch_all" yaml:"catch_all,omitempty"`
}

type AudioConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "pulse", "auto"
}

type SerialConfig struct {
	Path         string `mapstructure:"path" yaml:"path"`
	Baud         int    `mapstructure:"baud" yaml:"baud"`
	MuteFeedback bool   `mapstructure:"mute_feedback" yaml:"mute_feedback"`
}

type DeviceConfig struct {
	Resolution uint32 `mapstructure:"resolution" yaml:"resolution"`
	IntervalMs int    `mapstructure:"interval_ms" yaml:"interval_ms"`
}

// Config is the resolved configuration for one run. It does not change once
// loaded.
type Config struct {
	Profile string       `yaml:"profile"`
	Audio   AudioConfig  `yaml:"audio"`
	Serial  SerialConfig `yaml:"serial"`
	Device  DeviceConfig `yaml:"device"`
	Dials   []DialConfig `yaml:"dials"`

	bindings []mapping.Binding
}

// Bindings returns the compiled dial bindings, in configured order.
func (c *Config) Bindings() []mapping.Binding {
	return append([]mapping.Binding(nil), c.bindings...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("audio.backend", "auto")
	v.SetDefault("serial.path", wire.DefaultSerialPath())
	v.SetDefault("serial.baud", wire.DefaultBaudRate)
	v.SetDefault("serial.mute_feedback", false)
	v.SetDefault("device.resolution", uint32(dial.DefaultResolution))
	v.SetDefault("device.interval_ms", DefaultIntervalMs)
}

// LoadWithProfile reads configFile and resolves the named profile. An empty
// profile selects active_profile from the file, then "default".
func LoadWithProfile(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return nil, fmt.Errorf("no config file specified, use --config flag")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	profileName := strings.ToLower(profile)
	if profileName == "" {
		profileName = strings.ToLower(rootConfig.ActiveProfile)
	}
	if profileName == "" {
		profileName = DefaultProfile
	}

	selected, exists := rootConfig.Profiles[profileName]
	if !exists {
		return nil, fmt.Errorf("configuration profile '%s' not found", profileName)
	}

	bindings, err := BuildBindings(selected.Dials, dial.Count)
	if err != nil {
		return nil, fmt.Errorf("invalid profile '%s': %w", profileName, err)
	}

	return &Config{
		Profile:  profileName,
		Audio:    rootConfig.Audio,
		Serial:   rootConfig.Serial,
		Device:   rootConfig.Device,
		Dials:    selected.Dials,
		bindings: bindings,
	}, nil
}

// ValidateConfigurationFormat validates the configuration file format and returns parsed config
func ValidateConfigurationFormat(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)

	v.SetEnvPrefix("DIALMIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateSerial(rootConfig.Serial); err != nil {
		return nil, fmt.Errorf("invalid serial section: %w", err)
	}
	if err := validateDevice(rootConfig.Device); err != nil {
		return nil, fmt.Errorf("invalid device section: %w", err)
	}

	if len(rootConfig.Profiles) == 0 {
		return nil, fmt.Errorf("profiles section is required")
	}

	// Every profile must be usable, not only the active one
	for _, name := range ProfileNames(&rootConfig) {
		p := rootConfig.Profiles[name]
		if p == nil {
			return nil, fmt.Errorf("profile '%s' is empty", name)
		}
		if _, err := BuildBindings(p.Dials, dial.Count); err != nil {
			return nil, fmt.Errorf("invalid profile '%s': %w", name, err)
		}
	}

	return &rootConfig, nil
}

// ProfileNames returns the profile names in sorted order.
func ProfileNames(root *RootConfig) []string {
	names := make([]string, 0, len(root.Profiles))
	for name := range root.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateSerial(s SerialConfig) error {
	if s.Path == "" {
		return fmt.Errorf("'path' cannot be empty")
	}
	if s.Baud <= 0 {
		return fmt.Errorf("'baud' must be > 0, got: %d", s.Baud)
	}
	return nil
}

func validateDevice(d DeviceConfig) error {
	if err := dial.Resolution(d.Resolution).Validate(); err != nil {
		return fmt.Errorf("'resolution': %w", err)
	}
	if d.IntervalMs < 0 {
		return fmt.Errorf("'interval_ms' must be >= 0, got: %d", d.IntervalMs)
	}
	return nil
}

// BuildBindings validates dial entries and compiles their selectors. The
// number of entries must equal the number of physical dials, since entry i is
// driven by dial i.
func BuildBindings(dials []DialConfig, expected int) ([]mapping.Binding, error) {
	if len(dials) != expected {
		return nil, fmt.Errorf("%d dials configured but the device has %d", len(dials), expected)
	}

	seenNames := make(map[string]bool)
	catchAll := -1
	bindings := make([]mapping.Binding, 0, len(dials))

	for i, d := range dials {
		prefix := fmt.Sprintf("dials[%d]", i)

		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%s: 'name' is required", prefix)
		}
		if seenNames[name] {
			return nil, fmt.Errorf("%s: duplicate name '%s'", prefix, name)
		}
		seenNames[name] = true

		var selector mapping.Selector
		switch {
		case d.CatchAll && d.Pattern != "":
			return nil, fmt.Errorf("%s '%s': 'pattern' and 'catch_all' are mutually exclusive", prefix, d.Name)
		case d.CatchAll:
			if catchAll >= 0 {
				return nil, fmt.Errorf("%s '%s': only one catch_all dial is allowed, dials[%d] is already one", prefix, d.Name, catchAll)
			}
			catchAll = i
			selector = mapping.CatchAllSelector()
		case d.Pattern != "":
			s, err := mapping.PatternSelector(d.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%s '%s': %w", prefix, d.Name, err)
			}
			selector = s
		default:
			return nil, fmt.Errorf("%s '%s': one of 'pattern' or 'catch_all' is required", prefix, d.Name)
		}

		bindings = append(bindings, mapping.Binding{Name: d.Name, Selector: selector})
	}

	return bindings, nil
}

// UpdateActiveProfile updates the active_profile field in the config file
func UpdateActiveProfile(configFile, newActiveProfile string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	rootConfig, err := ValidateConfigurationFormat(configFile)
	if err != nil {
		return err
	}
	if _, exists := rootConfig.Profiles[strings.ToLower(newActiveProfile)]; !exists {
		return fmt.Errorf("configuration profile '%s' not found", newActiveProfile)
	}

	// A separate viper instance writes back only what is in the file
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	v.Set("active_profile", strings.ToLower(newActiveProfile))

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// DefaultRoot returns the configuration written by WriteDefault.
func DefaultRoot() *RootConfig {
	return &RootConfig{
		ActiveProfile: DefaultProfile,
		Audio:         AudioConfig{Backend: "auto"},
		Serial: SerialConfig{
			Path: wire.DefaultSerialPath(),
			Baud: wire.DefaultBaudRate,
		},
		Device: DeviceConfig{
			Resolution: uint32(dial.DefaultResolution),
			IntervalMs: DefaultIntervalMs,
		},
		Profiles: map[string]*Profile{
			DefaultProfile: {
				Dials: []DialConfig{
					{Name: "music", Pattern: "spotify|rhythmbox|mpv"},
					{Name: "chat", Pattern: "discord|zoom|teams"},
					{Name: "other", CatchAll: true},
				},
			},
		},
	}
}

// WriteDefault writes a starter configuration. It refuses to overwrite an
// existing file.
func WriteDefault(configFile string) error {
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file %s already exists", configFile)
	}

	out, err := yaml.Marshal(DefaultRoot())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, out, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}
