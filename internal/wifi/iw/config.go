package iw

import (
	"errors"
	"fmt"
	"strconv"
)

// Usage reference:
// https://manpages.debian.org/bookworm/iw/iw.8.en.html

// Config is a struct for configuring the `iw` scan invocation
type Config struct {
	// Required
	Iface string `yaml:"iface" json:"iface"` // Wireless interface, e.g. wlan0

	// Optional

	// ForceScan requests a scan even when the interface is associated
	// (`ap-force`). Always enabled by the sampler; configurable for tests.
	ForceScan bool `yaml:"forceScan" json:"forceScan"`

	// Example invocations:
	// iw dev wlan0 scan ap-force
	// iw dev wlan0 scan ap-force freq 2412 2437 5180
}

func (c *Config) Validate() error {
	if c.Iface == "" {
		return errors.New("iw.Config: interface is required")
	}
	return nil
}

// Args builds the command line arguments for a full discovery scan
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{"dev", c.Iface, "scan"}
	if c.ForceScan {
		args = append(args, "ap-force")
	}

	return args, nil
}

// FreqArgs builds the command line arguments for a narrow scan limited
// to the given frequencies in MHz
func (c *Config) FreqArgs(freqsMHz []int) ([]string, error) {
	if len(freqsMHz) == 0 {
		return nil, errors.New("iw.Config: at least one frequency is required")
	}

	args, err := c.Args()
	if err != nil {
		return nil, err
	}

	args = append(args, "freq")
	for _, f := range freqsMHz {
		if f <= 0 {
			return nil, fmt.Errorf("iw.Config: invalid frequency: %d given", f)
		}
		args = append(args, strconv.Itoa(f))
	}

	return args, nil
}
