// Package config loads the clock table of a platform and the settings of the
// rpmctl tool.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/rpmclk/rpm"
	"github.com/sarchlab/rpmclk/rpmclk"
)

//go:embed msm8960.yaml
var defaultTable []byte

// ClockPair describes one RPM clock and its two handles.
type ClockPair struct {
	Name           string `yaml:"name"`
	ActiveOnlyName string `yaml:"active_only_name"`
	ActiveID       uint32 `yaml:"active_id"`
	StatusID       uint32 `yaml:"status_id"`
	Branch         bool   `yaml:"branch"`
	RateHz         uint64 `yaml:"rate_hz"`

	// BootKHz is the value the firmware votes before the kernel starts. Only
	// the simulator uses it.
	BootKHz uint64 `yaml:"boot_khz"`
}

// Table is the RPM clock table of a platform.
type Table struct {
	Domain string      `yaml:"domain"`
	Clocks []ClockPair `yaml:"clocks"`
}

// DefaultTable returns the built-in MSM8960 clock table.
func DefaultTable() *Table {
	t, err := ParseTable(defaultTable)
	if err != nil {
		panic(err)
	}

	return t
}

// LoadTable reads a table from a YAML file. An empty path selects the
// built-in table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading clock table: %w", err)
	}

	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("clock table %s: %w", path, err)
	}

	return t, nil
}

// ParseTable decodes and validates a YAML table.
func ParseTable(data []byte) (*Table, error) {
	t := &Table{}

	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, err
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return t, nil
}

// Validate checks the table for missing and duplicated entries.
func (t *Table) Validate() error {
	if t.Domain == "" {
		return errors.New("table has no domain name")
	}

	names := make(map[string]bool)
	ids := make(map[uint32]string)

	for i, p := range t.Clocks {
		if p.Name == "" || p.ActiveOnlyName == "" {
			return fmt.Errorf("clock %d: both handle names are required", i)
		}

		for _, n := range []string{p.Name, p.ActiveOnlyName} {
			if names[n] {
				return fmt.Errorf("clock %s is defined twice", n)
			}
			names[n] = true
		}

		if other, found := ids[p.ActiveID]; found {
			return fmt.Errorf("clock %s reuses active id %d of %s",
				p.Name, p.ActiveID, other)
		}
		ids[p.ActiveID] = p.Name
	}

	return nil
}

// Build creates the handles of every clock in the domain.
func (t *Table) Build(d *rpmclk.Domain) []*rpmclk.Clock {
	clocks := make([]*rpmclk.Clock, 0, 2*len(t.Clocks))

	for _, p := range t.Clocks {
		b := rpmclk.MakeBuilder().
			WithDomain(d).
			WithActiveID(rpm.ResourceID(p.ActiveID)).
			WithStatusID(rpm.ResourceID(p.StatusID)).
			WithRate(p.RateHz)
		if p.Branch {
			b = b.WithBranch()
		}

		normal, activeOnly := b.Build(p.Name, p.ActiveOnlyName)
		clocks = append(clocks, normal, activeOnly)
	}

	return clocks
}

// Seed prepares a simulator to answer for the table's clocks as the
// firmware left them.
func (t *Table) Seed(s *rpm.Simulator) {
	for _, p := range t.Clocks {
		s.MapStatus(rpm.ResourceID(p.StatusID), rpm.ResourceID(p.ActiveID))

		if p.BootKHz != 0 {
			s.SetBootValue(rpm.ResourceID(p.ActiveID), p.BootKHz)
		}
	}
}
