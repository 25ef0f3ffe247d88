// Package parse handles the composite machine key shared by both
// store backends: "{labId}_{machineNumber}", e.g. "lab-1_15".
package parse

import (
	"fmt"
	"strconv"
	"strings"
)

// MachineKey builds the storage key for a machine.
func MachineKey(labID string, machineNumber int) string {
	return fmt.Sprintf("%s_%d", labID, machineNumber)
}

// ParseMachineKey splits a storage key back into its lab id and machine
// number. Lab ids may themselves contain underscores, so the split is
// on the last one.
func ParseMachineKey(key string) (labID string, machineNumber int, err error) {
	idx := strings.LastIndex(key, "_")
	if idx <= 0 || idx == len(key)-1 {
		return "", 0, fmt.Errorf("malformed machine key: %q", key)
	}
	n, err := strconv.Atoi(key[idx+1:])
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("malformed machine key: %q", key)
	}
	return key[:idx], n, nil
}
