package sysmetrics

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"gitlab.com/tinyland/lab/host-pulse/collectors"
)

// errNoSensor is returned when sysfs exposes no temperature sensor.
var errNoSensor = errors.New("no temperature sensor found")

// readTemperature returns the CPU temperature in degrees Celsius.
// hwmon sensors are tried first, then ACPI thermal zones. A sensor whose
// label or chip name looks like a CPU wins; otherwise the first readable
// sensor is used.
func readTemperature(fsys fs.FS) (float64, error) {
	if fsys == nil {
		return 0, errNoSensor
	}

	v, hwErr := readHwmon(fsys)
	if hwErr == nil {
		return v, nil
	}

	v, tzErr := readThermalZones(fsys)
	if tzErr == nil {
		return v, nil
	}

	if errors.Is(hwErr, errNoSensor) && errors.Is(tzErr, errNoSensor) {
		return 0, errNoSensor
	}
	return 0, fmt.Errorf("hwmon: %v; thermal: %v", hwErr, tzErr)
}

// readHwmon scans class/hwmon/hwmon*/temp*_input.
func readHwmon(fsys fs.FS) (float64, error) {
	inputs, err := fs.Glob(fsys, "class/hwmon/hwmon*/temp*_input")
	if err != nil {
		return 0, err
	}
	if len(inputs) == 0 {
		return 0, errNoSensor
	}
	sort.Strings(inputs)

	var first float64
	var haveFirst bool
	var lastErr error
	for _, input := range inputs {
		v, err := readMilliCelsius(fsys, input)
		if err != nil {
			lastErr = err
			continue
		}
		label := readTrimmed(fsys, strings.TrimSuffix(input, "_input")+"_label")
		chip := readTrimmed(fsys, path.Join(path.Dir(input), "name"))
		if collectors.IsCPUSensor(label) || collectors.IsCPUSensor(chip) {
			return v, nil
		}
		if !haveFirst {
			first, haveFirst = v, true
		}
	}
	if haveFirst {
		return first, nil
	}
	return 0, fmt.Errorf("no readable hwmon sensor: %w", lastErr)
}

// readThermalZones scans class/thermal/thermal_zone*/temp.
func readThermalZones(fsys fs.FS) (float64, error) {
	zones, err := fs.Glob(fsys, "class/thermal/thermal_zone*/temp")
	if err != nil {
		return 0, err
	}
	if len(zones) == 0 {
		return 0, errNoSensor
	}
	sort.Strings(zones)

	var first float64
	var haveFirst bool
	var lastErr error
	for _, zone := range zones {
		v, err := readMilliCelsius(fsys, zone)
		if err != nil {
			lastErr = err
			continue
		}
		if collectors.IsCPUSensor(readTrimmed(fsys, path.Join(path.Dir(zone), "type"))) {
			return v, nil
		}
		if !haveFirst {
			first, haveFirst = v, true
		}
	}
	if haveFirst {
		return first, nil
	}
	return 0, fmt.Errorf("no readable thermal zone: %w", lastErr)
}

// readMilliCelsius parses a sysfs temperature file (millidegrees Celsius).
func readMilliCelsius(fsys fs.FS, name string) (float64, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return 0, err
	}
	milli, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return float64(milli) / 1000.0, nil
}

func readTrimmed(fsys fs.FS, name string) string {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
