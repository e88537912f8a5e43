// Package harness runs scripted experiment sessions on virtual time and
// checks what ends up in the database.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: blocks
//	description: "Two conditions with a scored decision"
//	design: ../designs/blocks     # CUE package dir, relative to the scenario
//	order: [a, b, a]              # optional, overrides the design
//	timing: abs                   # optional, overrides the design
//	frame_rate: 8
//	pulse_clock: {key: "5", period: 2}
//	pulses: {key: "5", start: 1, period: 2, count: 5}
//	responses:
//	  - {key: f, at: 1.125}
//	assertions:
//	  - {type: event_count, name: stim, phase: main, count: 2}
//	  - {type: response_score, index: 0, score: 1}
//	  - {type: condition_order, conditions: [a, b, a]}
//	  - {type: period_within, key: "5", period: 2, tolerance: 0.05}
//
// Press times (responses[].at and pulses) are virtual seconds since the
// scenario started, not experiment time: a pre phase or a pulse clock moves
// the experiment's time zero.
//
// # Assertion Types
//
//   - event_count: number of stored events named name (in phase, if set)
//   - response_score: score of the index-th response of the main phase
//   - condition_order: condition labels of the main phase, with runs of
//     the same label collapsed
//   - period_within: consecutive main phase responses with key are period
//     apart, within tolerance
//
// # Golden Files
//
// RunWithGolden renders the stored rows as text and compares them against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
