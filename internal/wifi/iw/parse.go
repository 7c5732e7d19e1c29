package iw

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/roman-kulish/wifi-surveillance/internal/wifi"
)

// Parse parses `iw dev <iface> scan` plaintext into access point records.
// Output is organized in blocks opened by a `BSS <mac>` line followed by
// indented attribute lines; only `freq:`, `signal:` and `SSID:` attributes
// are consumed, everything else is ignored. Malformed attribute values are
// skipped rather than failing the whole scan.
func Parse(r io.Reader) ([]wifi.Record, error) {
	var records []wifi.Record
	var cur *wifi.Record

	flush := func() {
		if cur == nil {
			return
		}
		records = append(records, *cur)
		cur = nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "BSS ") {
			flush()
			if bssid, ok := parseBSSLine(line); ok {
				cur = &wifi.Record{BSSID: bssid}
			}
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "freq:"):
			v := strings.TrimSpace(strings.TrimPrefix(line, "freq:"))
			// Newer iw prints fractional MHz, e.g. "freq: 2412.0"
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				cur.FreqMHz = int(f)
				cur.Channel = wifi.ChannelFromFreq(cur.FreqMHz)
			}

		case strings.HasPrefix(line, "signal:"):
			if v, ok := parseSignal(line); ok {
				cur.SignalDBM = v
			}

		case strings.HasPrefix(line, "SSID:"):
			cur.SSID = strings.TrimSpace(strings.TrimPrefix(line, "SSID:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	flush()
	return records, nil
}

// parseBSSLine extracts the MAC address from a block header such as
// `BSS 12:34:56:78:9a:bc(on wlan0) -- associated`
func parseBSSLine(line string) (string, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "BSS "))
	if idx := strings.IndexAny(rest, " \t("); idx >= 0 {
		rest = rest[:idx]
	}
	if len(rest) != 17 {
		return "", false
	}
	return strings.ToLower(rest), true
}

// parseSignal extracts the dBm value from a line such as `signal: -54.00 dBm`
func parseSignal(line string) (float64, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
