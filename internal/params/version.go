// Package params versions the tunable model parameters. Every change to
// the risk weights, confidence penalties, or learner settings is tagged
// as a semver snapshot so a bad tuning round can be diffed against its
// predecessor and rolled back.
package params

import (
	"fmt"
	"strconv"
	"strings"
)

// BumpLevel selects which semver component a new tag increments.
type BumpLevel int

const (
	BumpMajor BumpLevel = iota
	BumpMinor
	BumpPatch
)

type version struct {
	major, minor, patch int
}

func parseVersion(s string) (version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return version{}, fmt.Errorf("invalid version %q: want major.minor.patch", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return version{}, fmt.Errorf("invalid version %q: component %q", s, p)
		}
		nums[i] = n
	}
	return version{nums[0], nums[1], nums[2]}, nil
}

func (v version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

// bump returns the next version at the given level, zeroing the lower
// components.
func (v version) bump(level BumpLevel) version {
	switch level {
	case BumpMajor:
		return version{v.major + 1, 0, 0}
	case BumpMinor:
		return version{v.major, v.minor + 1, 0}
	default:
		return version{v.major, v.minor, v.patch + 1}
	}
}

// less orders versions by precedence.
func (v version) less(other version) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}
