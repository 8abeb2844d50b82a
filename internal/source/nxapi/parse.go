package nxapi

import (
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cast"

	"codeberg.org/mutker/nexmon/internal/logger"
	"codeberg.org/mutker/nexmon/internal/source"
	"codeberg.org/mutker/nexmon/internal/telemetry"
)

// parseFunc consumes one class query's attribute maps. sampledAt is the
// parse time, used for counters whose object carries no usable timestamp.
type parseFunc func(attrs []map[string]any, res *source.Result, sampledAt time.Time)

// classQueries lists the managed-object classes pulled every poll, in order.
var classQueries = []struct {
	endpoint string
	parse    parseFunc
}{
	{"/api/node/class/sysmgrShowVersion.json", parseVersion},
	{"/api/node/class/nwVdc.json", parseVdc},
	{"/api/node/class/eqptCh.json", parseChassis},
	{"/api/node/class/pieCpuUsage.json", parseCPUUsage},
	{"/api/node/class/pieMemoryUsage.json", parseMemoryUsage},
	{"/api/node/mo/sys/intf.json?query-target=children", parseIntf},
	{"/api/node/class/ethpmPhysIf.json", parseEthpmPhysIf},
	{"/api/node/class/rmonEtherStats.json", parseEtherStats},
	{"/api/node/class/rmonIfHCIn.json", parseHCIn},
	{"/api/node/class/rmonIfHCOut.json", parseHCOut},
	{"/api/node/class/ipqosQueuingStats.json", parseQueuingStats},
	{"/api/node/class/lldpAdjEp.json", parseLLDPAdj},
}

func stringAttr(attrs map[string]any, key string) string {
	return cast.ToString(attrs[key])
}

// dnInterface extracts the short interface name from a distinguished name
// like sys/intf/phys-[eth1/1]/dbgIfHCIn. Management, loopback, SVI and
// subinterface objects are skipped.
func dnInterface(attrs map[string]any) (string, bool) {
	dn := stringAttr(attrs, "dn")
	if dn == "" {
		return "", false
	}
	if strings.Contains(dn, "mgmt") || strings.Contains(dn, "lo") ||
		strings.Contains(dn, "svi") || strings.Contains(dn, ".") {
		return "", false
	}
	open := strings.IndexByte(dn, '[')
	end := strings.IndexByte(dn, ']')
	if open < 0 || end <= open {
		return "", false
	}

	return dn[open+1 : end], true
}

func (r resultBuilder) counter(intf, name string, v any, at time.Time) {
	if v == nil {
		return
	}
	value, err := cast.ToUint64E(v)
	if err != nil {
		logger.Debug().Str("intf", intf).Str("counter", name).Msg("Unparseable counter value, skipping")
		return
	}
	r.res.Samples = append(r.res.Samples, telemetry.RawSample{
		Interface: intf,
		Counter:   name,
		Value:     value,
		Time:      at,
	})
}

// resultBuilder gives parsers a pointer receiver for append helpers without
// every helper taking *source.Result.
type resultBuilder struct {
	res *source.Result
}

func (r resultBuilder) inventory(intf string) telemetry.InterfaceInventory {
	if r.res.Inventory == nil {
		r.res.Inventory = make(map[string]telemetry.InterfaceInventory)
	}
	inv, ok := r.res.Inventory[intf]
	if !ok {
		inv = telemetry.InterfaceInventory{Interface: intf}
	}

	return inv
}

func (r resultBuilder) facts() *telemetry.SwitchFacts {
	if r.res.Facts == nil {
		r.res.Facts = &telemetry.SwitchFacts{}
	}

	return r.res.Facts
}

// sampleTime prefers the object's own modification timestamp over the parse
// time, so rate windows line up with the switch's clock.
func sampleTime(attrs map[string]any, fallback time.Time) time.Time {
	raw := stringAttr(attrs, "modTs")
	if raw == "" {
		return fallback
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fallback
	}

	return ts
}

func parseVersion(attrs []map[string]any, res *source.Result, _ time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		facts := b.facts()
		facts.Version = stringAttr(a, "nxosVersion")
		facts.UptimeSec = parseUptime(stringAttr(a, "kernelUptime"))
	}
}

func parseVdc(attrs []map[string]any, res *source.Result, _ time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		b.facts().Name = stringAttr(a, "name")
	}
}

func parseChassis(attrs []map[string]any, res *source.Result, _ time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		b.facts().Model = stringAttr(a, "model")
	}
}

func parseCPUUsage(attrs []map[string]any, res *source.Result, _ time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		facts := b.facts()
		facts.CPUUser = cast.ToFloat64(a["userPercent"])
		facts.CPUKernel = cast.ToFloat64(a["kernelPercent"])
	}
}

func parseMemoryUsage(attrs []map[string]any, res *source.Result, _ time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		facts := b.facts()
		facts.MemTotal = cast.ToUint64(a["memTotal"])
		facts.MemUsed = cast.ToUint64(a["memUsed"])
	}
}

func parseIntf(attrs []map[string]any, res *source.Result, _ time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		if _, ok := dnInterface(a); !ok {
			continue
		}
		intf := stringAttr(a, "id")
		if intf == "" {
			logger.Debug().Str("dn", stringAttr(a, "dn")).Msg("Interface object without id, skipping")
			continue
		}
		inv := b.inventory(intf)
		inv.Description = stringAttr(a, "descr")
		inv.AdminState = stringAttr(a, "adminSt")
		inv.OperState = stringAttr(a, "operSt")
		inv.OperMode = stringAttr(a, "mode")
		res.Inventory[intf] = inv
	}
}

func parseEthpmPhysIf(attrs []map[string]any, res *source.Result, _ time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		intf, ok := dnInterface(a)
		if !ok {
			continue
		}
		inv := b.inventory(intf)
		operSt := stringAttr(a, "operSt")
		inv.OperState = operSt
		inv.SpeedBps = parseSpeedBps(stringAttr(a, "operSpeed"))
		if !strings.Contains(operSt, "up") {
			inv.DownReason = stringAttr(a, "operStQual")
		}
		res.Inventory[intf] = inv
	}
}

func parseEtherStats(attrs []map[string]any, res *source.Result, sampledAt time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		intf, ok := dnInterface(a)
		if !ok {
			continue
		}
		at := sampleTime(a, sampledAt)
		b.counter(intf, "rx_crc", a["cRCAlignErrors"], at)
		b.counter(intf, "rx_crc_stomped", a["stompedCRCAlignErrors"], at)
		b.counter(intf, "tx_jumbo", a["txOversizePkts"], at)
		b.counter(intf, "rx_jumbo", a["rxOversizePkts"], at)
	}
}

func parseHCIn(attrs []map[string]any, res *source.Result, sampledAt time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		intf, ok := dnInterface(a)
		if !ok {
			continue
		}
		at := sampleTime(a, sampledAt)
		b.counter(intf, "rx_bytes", a["octets"], at)
		b.counter(intf, "rx_ucast_pkts", a["ucastPkts"], at)
		b.counter(intf, "rx_multicast_pkts", a["multicastPkts"], at)
		b.counter(intf, "rx_broadcast_pkts", a["broadcastPkts"], at)
	}
}

func parseHCOut(attrs []map[string]any, res *source.Result, sampledAt time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		intf, ok := dnInterface(a)
		if !ok {
			continue
		}
		at := sampleTime(a, sampledAt)
		b.counter(intf, "tx_bytes", a["octets"], at)
		b.counter(intf, "tx_ucast_pkts", a["ucastPkts"], at)
		b.counter(intf, "tx_multicast_pkts", a["multicastPkts"], at)
		b.counter(intf, "tx_broadcast_pkts", a["broadcastPkts"], at)
	}
}

func parseQueuingStats(attrs []map[string]any, res *source.Result, sampledAt time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		intf, ok := dnInterface(a)
		if !ok {
			continue
		}
		queue := stringAttr(a, "cmapName")
		if queue == "" {
			logger.Debug().Str("intf", intf).Msg("Queue stats without cmapName, skipping")
			continue
		}
		at := sampleTime(a, sampledAt)
		prefix := "queue/" + queue + "/"
		b.counter(intf, prefix+"tx_bytes", a["txBytes"], at)
		b.counter(intf, prefix+"tx_pkts", a["txPackets"], at)
		b.counter(intf, prefix+"drop_bytes", a["dropBytes"], at)
		b.counter(intf, prefix+"drop_pkts", a["dropPackets"], at)
		b.counter(intf, prefix+"rx_pause", a["pfcRxPpp"], at)
		b.counter(intf, prefix+"tx_pause", a["pfcTxPpp"], at)
		b.counter(intf, prefix+"rand_drop_bytes", a["randDropBytes"], at)
		b.counter(intf, prefix+"rand_drop_pkts", a["randDropPackets"], at)
		b.counter(intf, prefix+"ecn_marked_pkts", a["randEcnMarkedPackets"], at)
		if depth := a["ucCurrQueueDepth"]; depth != nil {
			res.Gauges = append(res.Gauges, telemetry.Gauge{
				Interface: intf,
				Name:      prefix + "q_depth",
				Value:     cast.ToFloat64(depth),
			})
		}
	}
}

var hostIntfRe = regexp.MustCompile(`fab\w+|en\w+`)

// parseLLDPAdj classifies the LLDP neighbor on each interface. Stations and
// anything running Linux count as hosts even when advertised as routers,
// since container runtimes flip the station capability bit.
func parseLLDPAdj(attrs []map[string]any, res *source.Result, _ time.Time) {
	b := resultBuilder{res}
	for _, a := range attrs {
		intf, ok := dnInterface(a)
		if !ok {
			continue
		}
		inv := b.inventory(intf)
		encap := stringAttr(a, "enCap")
		sysDesc := stringAttr(a, "sysDesc")

		switch {
		case strings.Contains(encap, "tatio") ||
			strings.Contains(strings.ToLower(sysDesc), "linux"):
			inv.Peer = telemetry.PeerInfo{
				Type:      "host",
				Addr:      stringAttr(a, "mgmtIp"),
				Name:      stringAttr(a, "sysName"),
				Interface: strings.Join(hostIntfRe.FindAllString(stringAttr(a, "portDesc"), -1), ""),
			}
		case strings.Contains(encap, "ridg") || strings.Contains(encap, "oute"):
			inv.Peer = telemetry.PeerInfo{
				Type:      "switch",
				Addr:      stringAttr(a, "mgmtIp"),
				Name:      stringAttr(a, "sysName"),
				Interface: strings.Replace(stringAttr(a, "portIdV"), "Ethernet", "eth", 1),
			}
		default:
			inv.Peer = telemetry.PeerInfo{Type: "other"}
		}
		res.Inventory[intf] = inv
	}
}

var (
	speedRe  = regexp.MustCompile(`\d+`)
	uptimeRe = regexp.MustCompile(`(\d+)\s+(day|hour|min|sec)`)
)

// parseSpeedBps turns strings like "100 Gbps" or "400G" into bits per second.
// Unknown or auto speeds come back as zero.
func parseSpeedBps(s string) uint64 {
	digits := speedRe.FindString(s)
	if digits == "" {
		return 0
	}

	return cast.ToUint64(digits) * 1_000_000_000
}

// parseUptime sums a "12 days, 3 hours, 4 minutes, 5 seconds" string.
func parseUptime(s string) uint64 {
	var total uint64
	for _, m := range uptimeRe.FindAllStringSubmatch(s, -1) {
		n := cast.ToUint64(m[1])
		switch m[2] {
		case "day":
			total += n * 86400
		case "hour":
			total += n * 3600
		case "min":
			total += n * 60
		case "sec":
			total += n
		}
	}

	return total
}
