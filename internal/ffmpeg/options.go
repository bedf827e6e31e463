package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType is an input tuning flag applied before -i.
type OptionType string

// Input option constants
const (
	OptionNoBuffer           OptionType = "nobuffer"
	OptionLowDelay           OptionType = "low_delay"
	OptionDiscardCorrupt     OptionType = "discardcorrupt"
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionFastProbe          OptionType = "fast_probe"
	OptionRTSPTCP            OptionType = "rtsp_tcp"
	OptionRTSPUDP            OptionType = "rtsp_udp"
)

// OptionCategory represents option categories
type OptionCategory string

const (
	CategoryLatency     OptionCategory = "Latency"
	CategoryErrorHandle OptionCategory = "Error Handling"
	CategoryTransport   OptionCategory = "Transport"
)

// ExclusiveGroup represents a group of mutually exclusive options
type ExclusiveGroup string

const (
	GroupRTSPTransport ExclusiveGroup = "rtsp_transport"
)

// Option describes an input option.
type Option struct {
	Key            OptionType      `json:"key"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       OptionCategory  `json:"category"`
	AppDefault     bool            `json:"app_default"`
	Args           []string        `json:"args"`
	ExclusiveGroup *ExclusiveGroup `json:"exclusive_group,omitempty"`
	ConflictsWith  []OptionType    `json:"conflicts_with,omitempty"`
}

func group(g ExclusiveGroup) *ExclusiveGroup { return &g }

// AllOptions lists the supported input options.
var AllOptions = []Option{
	{
		Key:         OptionNoBuffer,
		Name:        "No Input Buffer",
		Description: "Reduce latency introduced by initial input buffering",
		Category:    CategoryLatency,
		AppDefault:  true,
		Args:        []string{"-fflags", "+nobuffer"},
	},
	{
		Key:         OptionLowDelay,
		Name:        "Low Delay Decoding",
		Description: "Force low delay decoding, disables frame reordering",
		Category:    CategoryLatency,
		AppDefault:  true,
		Args:        []string{"-flags", "+low_delay"},
	},
	{
		Key:         OptionFastProbe,
		Name:        "Fast Probe",
		Description: "Start decoding after a minimal stream analysis",
		Category:    CategoryLatency,
		Args:        []string{"-probesize", "32768", "-analyzeduration", "0"},
	},
	{
		Key:         OptionDiscardCorrupt,
		Name:        "Discard Corrupt Packets",
		Description: "Drop packets flagged as corrupt instead of decoding them",
		Category:    CategoryErrorHandle,
		Args:        []string{"-fflags", "+discardcorrupt"},
	},
	{
		Key:         OptionIgnoreErrors,
		Name:        "Ignore Errors",
		Description: "Continue decoding despite bitstream errors",
		Category:    CategoryErrorHandle,
		Args:        []string{"-err_detect", "ignore_err"},
	},
	{
		Key:           OptionWallclockTimestamp,
		Name:          "Wallclock Timestamps",
		Description:   "Use wallclock as timestamps for sources with broken clocks",
		Category:      CategoryErrorHandle,
		Args:          []string{"-use_wallclock_as_timestamps", "1"},
		ConflictsWith: []OptionType{OptionDiscardCorrupt},
	},
	{
		Key:            OptionRTSPTCP,
		Name:           "RTSP over TCP",
		Description:    "Interleave RTSP media in the control connection",
		Category:       CategoryTransport,
		Args:           []string{"-rtsp_transport", "tcp"},
		ExclusiveGroup: group(GroupRTSPTransport),
	},
	{
		Key:            OptionRTSPUDP,
		Name:           "RTSP over UDP",
		Description:    "Receive RTSP media over UDP",
		Category:       CategoryTransport,
		Args:           []string{"-rtsp_transport", "udp"},
		ExclusiveGroup: group(GroupRTSPTransport),
	},
}

// GetOptionByKey returns an option by its key
func GetOptionByKey(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// GetDefaultOptions returns the options enabled by default.
func GetDefaultOptions() []OptionType {
	var defaults []OptionType
	for _, option := range AllOptions {
		if option.AppDefault {
			defaults = append(defaults, option.Key)
		}
	}
	return defaults
}

// ParseOptions converts option names from configuration.
func ParseOptions(names []string) ([]OptionType, error) {
	opts := make([]OptionType, 0, len(names))
	for _, name := range names {
		key := OptionType(strings.TrimSpace(name))
		if GetOptionByKey(key) == nil {
			return nil, fmt.Errorf("unknown ffmpeg option %q", name)
		}
		opts = append(opts, key)
	}
	return opts, nil
}

// ValidateOptions checks for conflicts and exclusive group violations
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]string)
	selectedSet := make(map[OptionType]bool)

	for _, key := range selected {
		selectedSet[key] = true
		if option := GetOptionByKey(key); option != nil && option.ExclusiveGroup != nil {
			groups[*option.ExclusiveGroup] = append(groups[*option.ExclusiveGroup], option.Name)
		}
	}

	for g, names := range groups {
		if len(names) > 1 {
			return fmt.Errorf("multiple options from exclusive group '%s' selected: %s", g, strings.Join(names, ", "))
		}
	}

	for _, key := range selected {
		option := GetOptionByKey(key)
		if option == nil {
			continue
		}
		for _, conflict := range option.ConflictsWith {
			if selectedSet[conflict] {
				name := string(conflict)
				if c := GetOptionByKey(conflict); c != nil {
					name = c.Name
				}
				return fmt.Errorf("option '%s' conflicts with '%s'", option.Name, name)
			}
		}
	}

	return nil
}

// InputArgs returns the arguments for options, merging repeated -fflags and
// -flags values into one argument each.
func InputArgs(options []OptionType) []string {
	var args []string
	merged := map[string]string{}
	var mergedOrder []string

	for _, key := range options {
		option := GetOptionByKey(key)
		if option == nil {
			continue
		}
		for i := 0; i+1 < len(option.Args); i += 2 {
			flag, value := option.Args[i], option.Args[i+1]
			if flag == "-fflags" || flag == "-flags" {
				if _, ok := merged[flag]; !ok {
					mergedOrder = append(mergedOrder, flag)
				}
				merged[flag] += value
				continue
			}
			args = append(args, flag, value)
		}
	}

	for _, flag := range mergedOrder {
		args = append(args, flag, merged[flag])
	}
	return args
}
