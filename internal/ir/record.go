package ir

import "slices"

// ReservedKey replaces the key of an anticipatory response during scoring.
// It must never be configured as a scoring key.
const ReservedKey = "*"

// Response is one input sample produced by polling an input source.
// Time is the experiment clock value at which the input was registered.
type Response struct {
	Key  string  `json:"key"`
	Time float64 `json:"time"`
}

// EventRecord is the outcome of one Event invocation, indexed by the clock
// value at which the event began.
type EventRecord struct {
	Time      float64 `json:"time"`
	Name      string  `json:"name"`
	Condition string  `json:"condition,omitempty"`
	OnCall    float64 `json:"on_call"`
	OnFrame   float64 `json:"on_frame"`
	OnEnd     float64 `json:"on_end"`
}

// NewEventRecord returns a record with every callback result set to Null.
func NewEventRecord(name string, t float64) EventRecord {
	return EventRecord{
		Time:    t,
		Name:    name,
		OnCall:  Null(),
		OnFrame: Null(),
		OnEnd:   Null(),
	}
}

// ResponseRecord is one scored response, indexed by its absolute time.
type ResponseRecord struct {
	Time  float64 `json:"time"`
	Key   string  `json:"key"`
	Score float64 `json:"score"`
	RT    float64 `json:"rt"`
}

// EventLog is an ordered sequence of event records.
type EventLog []EventRecord

// ResponseLog is an ordered sequence of response records.
type ResponseLog []ResponseRecord

// Names returns the event names in log order.
func (l EventLog) Names() []string {
	names := make([]string, len(l))
	for i, rec := range l {
		names[i] = rec.Name
	}
	return names
}

// At indexes the log the way a sequence index works in most data tools:
// negative indices count back from the end. ok is false when i is out of range.
func (l EventLog) At(i int) (rec EventRecord, ok bool) {
	if i < 0 {
		i += len(l)
	}
	if i < 0 || i >= len(l) {
		return EventRecord{}, false
	}
	return l[i], true
}

// WithCondition returns a copy of the log with every condition set to label.
func (l EventLog) WithCondition(label string) EventLog {
	out := slices.Clone(l)
	for i := range out {
		out[i].Condition = label
	}
	return out
}

// Scores returns the response scores in log order.
func (l ResponseLog) Scores() []float64 {
	scores := make([]float64, len(l))
	for i, rec := range l {
		scores[i] = rec.Score
	}
	return scores
}

// History is the read-only record of everything that ran before the current
// event. It is threaded forward explicitly; no event owns its history.
type History struct {
	Events    EventLog
	Responses ResponseLog
}

// Extend returns a new History with the given logs appended. The receiver is
// never modified, and the result never shares a backing array with it.
func (h History) Extend(events EventLog, responses ResponseLog) History {
	return History{
		Events:    slices.Concat(h.Events, events),
		Responses: slices.Concat(h.Responses, responses),
	}
}
