package telemetry

import (
	"codeberg.org/mutker/nexmon/internal/logger"
)

const (
	// DefaultHeadroom is the multiple of nominal link speed used as the
	// plausible-maximum-rate ceiling when telling wraparound apart from a
	// counter reset. A delta above headroom x line rate cannot be real
	// traffic, so it must be a reset.
	DefaultHeadroom = 2.0

	// Ceiling fallback for interfaces whose speed is not yet known. Sized
	// for the fastest port this platform ships.
	fallbackSpeedBps = 400e9

	// Minimum ethernet frame is 64 bytes, so line rate in packets per
	// second is at most speed / 512 bits.
	minFrameBits = 512
)

// Engine converts raw counter samples into rates and percentages using the
// per-switch stored prior samples. The engine mutates the state map so that
// it always tracks the latest accepted observation for every key.
type Engine struct {
	headroom float64
}

func NewEngine(headroom float64) *Engine {
	if headroom <= 0 {
		headroom = DefaultHeadroom
	}

	return &Engine{headroom: headroom}
}

// pktAccounting collects same-interval octet and packet deltas so that an
// average packet size can be derived from the pair.
type pktAccounting struct {
	rxBytes, txBytes float64
	rxPkts, txPkts   float64
}

// Derive applies one poll's samples against the stored state. First-seen keys
// record a baseline and emit a flagged metric with no value. Stale samples
// are dropped without touching state. Negative deltas are either unwrapped
// (when plausible for the counter's width) or classified as a reset, which
// rebaselines the key.
func (e *Engine) Derive(state map[Key]StoredSample, samples []RawSample, inventory map[string]InterfaceInventory) []DerivedMetric {
	metrics := make([]DerivedMetric, 0, len(samples))
	acct := make(map[string]*pktAccounting)

	for i := range samples {
		s := &samples[i]
		spec, ok := Lookup(s.Counter)
		if !ok {
			logger.Debug().
				Str("interface", s.Interface).
				Str("counter", s.Counter).
				Msg("Counter not in catalog, skipping")
			continue
		}

		key := Key{Interface: s.Interface, Counter: s.Counter}
		stored, exists := state[key]
		if !exists {
			metrics = append(metrics, DerivedMetric{
				Interface:   s.Interface,
				Name:        ScopedName(s.Counter, spec.RateName),
				FirstSample: true,
			})
			state[key] = StoredSample{Value: s.Value, Time: s.Time}
			continue
		}

		elapsed := s.Time.Sub(stored.Time).Seconds()
		if elapsed <= 0 {
			logger.Debug().
				Str("interface", s.Interface).
				Str("counter", s.Counter).
				Time("stored", stored.Time).
				Time("sample", s.Time).
				Msg("Stale sample discarded")
			continue
		}

		speed := e.speedFor(s.Interface, inventory)

		var delta uint64
		if s.Value >= stored.Value {
			delta = s.Value - stored.Value
		} else {
			wrapped := wrapDelta(stored.Value, s.Value, spec.Width)
			if float64(wrapped) <= e.maxDelta(spec.Kind, speed, elapsed) {
				delta = wrapped
			} else {
				logger.Info().
					Str("interface", s.Interface).
					Str("counter", s.Counter).
					Uint64("stored", stored.Value).
					Uint64("sample", s.Value).
					Msg("Counter reset detected, rebaselining")
				metrics = append(metrics, DerivedMetric{
					Interface:     s.Interface,
					Name:          ScopedName(s.Counter, spec.RateName),
					ResetDetected: true,
				})
				state[key] = StoredSample{Value: s.Value, Time: s.Time}
				continue
			}
		}

		rate := float64(delta) / elapsed
		if spec.Kind == KindOctets {
			rate *= 8 // octet counters are reported in bits per second
		}

		metrics = append(metrics, DerivedMetric{
			Interface: s.Interface,
			Name:      ScopedName(s.Counter, spec.RateName),
			Value:     rate,
		})

		if spec.UtilName != "" && realSpeed(s.Interface, inventory) > 0 {
			metrics = append(metrics, DerivedMetric{
				Interface: s.Interface,
				Name:      ScopedName(s.Counter, spec.UtilName),
				Value:     rate * 100 / float64(realSpeed(s.Interface, inventory)),
			})
		}

		accumulate(acct, s.Counter, s.Interface, delta)
		state[key] = StoredSample{Value: s.Value, Time: s.Time}
	}

	return append(metrics, packetSizes(acct)...)
}

func (e *Engine) speedFor(intf string, inventory map[string]InterfaceInventory) float64 {
	if s := realSpeed(intf, inventory); s > 0 {
		return float64(s)
	}

	return fallbackSpeedBps
}

func realSpeed(intf string, inventory map[string]InterfaceInventory) uint64 {
	if inv, ok := inventory[intf]; ok {
		return inv.SpeedBps
	}

	return 0
}

// maxDelta returns the largest believable counter increase over elapsed
// seconds for an interface of the given speed.
func (e *Engine) maxDelta(kind CounterKind, speedBps, elapsed float64) float64 {
	switch kind {
	case KindOctets:
		return e.headroom * speedBps / 8 * elapsed
	default:
		// Packet and event counters cannot tick faster than line-rate
		// minimum-size frames.
		return e.headroom * speedBps / minFrameBits * elapsed
	}
}

// wrapDelta computes the counter increase assuming one wraparound of the
// given bit width.
func wrapDelta(stored, sample uint64, width uint8) uint64 {
	if width >= 64 {
		// Unsigned subtraction is already modulo 2^64.
		return sample - stored
	}

	return sample + (uint64(1) << width) - stored
}

func accumulate(acct map[string]*pktAccounting, counter, intf string, delta uint64) {
	var a *pktAccounting
	get := func() *pktAccounting {
		if a = acct[intf]; a == nil {
			a = &pktAccounting{}
			acct[intf] = a
		}
		return a
	}

	switch counter {
	case "rx_bytes":
		get().rxBytes += float64(delta)
	case "tx_bytes":
		get().txBytes += float64(delta)
	case "rx_ucast_pkts", "rx_multicast_pkts", "rx_broadcast_pkts":
		get().rxPkts += float64(delta)
	case "tx_ucast_pkts", "tx_multicast_pkts", "tx_broadcast_pkts":
		get().txPkts += float64(delta)
	}
}

// packetSizes derives average frame sizes from paired octet and packet deltas
// of the same interval.
func packetSizes(acct map[string]*pktAccounting) []DerivedMetric {
	var metrics []DerivedMetric
	for intf, a := range acct {
		if a.rxPkts > 0 {
			metrics = append(metrics, DerivedMetric{
				Interface: intf,
				Name:      "rx_avg_pkt_size",
				Value:     a.rxBytes / a.rxPkts,
			})
		}
		if a.txPkts > 0 {
			metrics = append(metrics, DerivedMetric{
				Interface: intf,
				Name:      "tx_avg_pkt_size",
				Value:     a.txBytes / a.txPkts,
			})
		}
	}

	return metrics
}
