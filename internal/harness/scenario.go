package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jooh/expcontrol/internal/testutil"
)

// Scenario is one scripted session.
type Scenario struct {
	// Name identifies the scenario. It is also the session ID and the
	// golden file name.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Design is the CUE design directory. Relative paths are resolved
	// against the scenario file by LoadScenario.
	Design string `yaml:"design"`

	// Subject and Context default to "s01" and "harness".
	Subject string `yaml:"subject,omitempty"`
	Context string `yaml:"context,omitempty"`

	// Order and Timing override the design when set.
	Order  []string `yaml:"order,omitempty"`
	Timing string   `yaml:"timing,omitempty"`

	// FrameRate defaults to 8, which keeps every frame time exact.
	FrameRate float64 `yaml:"frame_rate,omitempty"`

	PulseClock *PulseClock `yaml:"pulse_clock,omitempty"`
	Pulses     *Pulses     `yaml:"pulses,omitempty"`

	Responses []ResponseStep `yaml:"responses,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// PulseClock configures scanner synchronisation. Zero fields take the
// defaults of the config package.
type PulseClock struct {
	Key       string  `yaml:"key"`
	Period    float64 `yaml:"period"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
	Duration  float64 `yaml:"duration,omitempty"`
	Timeout   float64 `yaml:"timeout,omitempty"`
	Dummies   int     `yaml:"dummies,omitempty"`
}

// Pulses is a regular train of trigger presses.
type Pulses struct {
	Key    string  `yaml:"key"`
	Start  float64 `yaml:"start"`
	Period float64 `yaml:"period"`
	Count  int     `yaml:"count"`
}

// ResponseStep is one scripted key press.
type ResponseStep struct {
	Key string  `yaml:"key"`
	At  float64 `yaml:"at"`
}

// Assertion checks the stored rows of a finished scenario.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Name and Phase select events (event_count). Phase defaults to all.
	Name  string `yaml:"name,omitempty"`
	Phase string `yaml:"phase,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Index and Score check a main phase response (response_score). A nil
	// Score expects an unscored response.
	Index int      `yaml:"index,omitempty"`
	Score *float64 `yaml:"score,omitempty"`

	Conditions []string `yaml:"conditions,omitempty"`

	Key       string  `yaml:"key,omitempty"`
	Period    float64 `yaml:"period,omitempty"`
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion type constants.
const (
	AssertEventCount     = "event_count"
	AssertResponseScore  = "response_score"
	AssertConditionOrder = "condition_order"
	AssertPeriodWithin   = "period_within"
)

// LoadScenario reads and parses a scenario YAML file, resolving the design
// directory against the file's location.
//
// Unknown fields are rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if sc.Design != "" && !filepath.IsAbs(sc.Design) {
		sc.Design = filepath.Join(filepath.Dir(path), sc.Design)
	}
	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &sc, nil
}

func validateScenario(sc *Scenario) error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Design == "" {
		return fmt.Errorf("design is required")
	}
	if sc.FrameRate < 0 {
		return fmt.Errorf("frame_rate must be positive, got %g", sc.FrameRate)
	}
	if sc.PulseClock != nil && (sc.PulseClock.Key == "" || sc.PulseClock.Period <= 0) {
		return fmt.Errorf("pulse_clock needs a key and a positive period")
	}
	if sc.Pulses != nil && (sc.Pulses.Key == "" || sc.Pulses.Period <= 0 || sc.Pulses.Count < 1) {
		return fmt.Errorf("pulses needs a key, a positive period and a count")
	}
	for i, r := range sc.Responses {
		if r.Key == "" {
			return fmt.Errorf("responses[%d]: key is required", i)
		}
		if r.At < 0 {
			return fmt.Errorf("responses[%d]: at must not be negative", i)
		}
	}
	for i, a := range sc.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertEventCount:
		if a.Name == "" {
			return fmt.Errorf("%s requires name", a.Type)
		}
	case AssertResponseScore:
		if a.Index < 0 {
			return fmt.Errorf("%s: index must not be negative", a.Type)
		}
	case AssertConditionOrder:
		if len(a.Conditions) == 0 {
			return fmt.Errorf("%s requires conditions", a.Type)
		}
	case AssertPeriodWithin:
		if a.Key == "" || a.Period <= 0 {
			return fmt.Errorf("%s requires key and a positive period", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// presses merges the pulse train and the scripted responses.
func (sc *Scenario) presses() []testutil.Press {
	var out []testutil.Press
	if p := sc.Pulses; p != nil {
		out = append(out, testutil.PulseTrain(p.Key, p.Start, p.Period, p.Count)...)
	}
	for _, r := range sc.Responses {
		out = append(out, testutil.Press{Key: r.Key, At: r.At})
	}
	return out
}
