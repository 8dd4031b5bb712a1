package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/imagestack/imagestack/pkg/lock"
)

func targetsSidecarPath(lockPath string) string {
	if strings.HasSuffix(lockPath, ".yaml") {
		return strings.TrimSuffix(lockPath, ".yaml") + ".targets.txt"
	}
	if strings.HasSuffix(lockPath, ".yml") {
		return strings.TrimSuffix(lockPath, ".yml") + ".targets.txt"
	}
	return lockPath + ".targets.txt"
}

func loadLock() (*lock.Lock, error) {
	data, err := os.ReadFile(lockPathFlag)
	if err != nil {
		return nil, fmt.Errorf("reading lock: %w", err)
	}
	return lock.Unmarshal(data)
}
