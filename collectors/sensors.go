package collectors

import "strings"

// cpuSensorHints are substrings that identify a CPU temperature sensor by
// its label or chip name. Matching is case-insensitive.
var cpuSensorHints = []string{"cpu", "core", "package", "tctl", "tdie", "k10temp", "coretemp", "x86_pkg"}

// IsCPUSensor reports whether a sensor label looks like a CPU temperature.
// Sources prefer such sensors and otherwise fall back to the first one found.
func IsCPUSensor(label string) bool {
	l := strings.ToLower(label)
	for _, hint := range cpuSensorHints {
		if strings.Contains(l, hint) {
			return true
		}
	}
	return false
}
