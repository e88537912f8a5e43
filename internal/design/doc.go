// Package design compiles experiment designs written in CUE into engine
// runnables.
//
// A design names its conditions, the default order and timing discipline,
// and optional pre and post events:
//
//	name:   "localiser"
//	timing: "abs"
//	order: ["faces", "houses", "faces"]
//
//	pre: {kind: "event", name: "instructions", duration: "forever", skip: ["space"]}
//
//	condition: faces: {
//		events: [
//			{kind: "draw", name: "face", duration: 0.5, draw: ["face"]},
//			{kind: "decision", name: "resp", duration: 1, correct: ["f"], incorrect: ["j"], min_rt: 0.1},
//		]
//	}
//
// Event kinds are event, draw, detection, decision, nback, synch, feedback
// and sequence (a nested block with its own timing). Durations are seconds
// or the string "forever". Event names and keys are NFC-normalised.
package design
