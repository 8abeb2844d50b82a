package collector

import (
	"codeberg.org/mutker/nexmon/internal/config"
	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/source"
)

// Status classifies one source's fetch on one switch.
type Status int

const (
	StatusOK Status = iota
	StatusPartial
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusPartial:
		return "partial"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one (switch, source) fetch.
type Outcome struct {
	Switch string
	Source string
	Status Status
	Err    error
}

// Summary aggregates a whole run. The exit status hangs on it: a run fails
// when any switch's structured-query source failed entirely or its inventory
// line was malformed. Command-output failures and partial pulls degrade the
// data but do not fail the run.
type Summary struct {
	Outcomes  []Outcome
	Malformed []error
}

func NewSummary(malformed []error) *Summary {
	return &Summary{Malformed: malformed}
}

func (s *Summary) Add(outcomes ...Outcome) {
	s.Outcomes = append(s.Outcomes, outcomes...)
}

// Failed reports whether the run as a whole should exit non-zero.
func (s *Summary) Failed() bool {
	if len(s.Malformed) > 0 {
		return true
	}
	for _, o := range s.Outcomes {
		if o.Source == "nxapi" && o.Status == StatusFailed {
			return true
		}
	}

	return false
}

// Log writes one line per outcome plus the malformed inventory entries.
func (s *Summary) Log() {
	for _, err := range s.Malformed {
		logger.Error().Err(err).Msg("Malformed inventory entry")
	}
	for _, o := range s.Outcomes {
		ev := logger.Info()
		if o.Status == StatusFailed {
			ev = logger.Error()
		}
		ev.Str("switch", o.Switch).
			Str("source", o.Source).
			Str("status", o.Status.String()).
			Msg("Poll outcome")
	}
}

func outcomeFor(sw config.Switch, name string, res *source.Result, err error) Outcome {
	o := Outcome{Switch: sw.Addr, Source: name}
	switch {
	case err != nil:
		o.Status = StatusFailed
		o.Err = err
	case res != nil && res.Partial:
		o.Status = StatusPartial
	default:
		o.Status = StatusOK
	}

	return o
}
