package config

import (
	"fmt"
	"strconv"
	"strings"
)

func parseIntValue(value string) (int64, error) {
	return strconv.ParseInt(value, 10, 64)
}

// parseUintValue accepts plain integers and binary size suffixes (KiB, MiB,
// GiB) so byte limits can be written the way operators think of them.
func parseUintValue(value string) (uint64, error) {
	multiplier := uint64(1)
	for suffix, m := range sizeSuffixes {
		if strings.HasSuffix(value, suffix) {
			value = strings.TrimSuffix(value, suffix)
			multiplier = m
			break
		}
	}
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, err
	}
	if n > 0 && multiplier > 1 && n > ^uint64(0)/multiplier {
		return 0, fmt.Errorf("size %s overflows", value)
	}
	return n * multiplier, nil
}

var sizeSuffixes = map[string]uint64{
	"KiB": 1 << 10,
	"MiB": 1 << 20,
	"GiB": 1 << 30,
}

func parseFloatValue(value string, bitSize int) (float64, error) {
	return strconv.ParseFloat(value, bitSize)
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", value)
}
