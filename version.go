package jumpbridge

import (
	"fmt"
	"strings"
)

// Version is a dotted release number. Components that were not given are -1,
// so "5" parses as {5, -1, -1}.
type Version struct {
	Major int
	Minor int
	Patch int
}

// ParseVersion reads "X.Y.Z", "X.Y" or "X". Text after the last number is ignored.
//
//	"5.2.4"    -> {5, 2, 4}
//	"5.2"      -> {5, 2, -1}
//	"3.9.2rc1" -> {3, 9, 2}
func ParseVersion(s string) (Version, error) {
	v := Version{Minor: -1, Patch: -1}
	if _, err := fmt.Sscanf(s, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch); err != nil {
		v.Patch = -1
		if _, err := fmt.Sscanf(s, "%d.%d", &v.Major, &v.Minor); err != nil {
			v.Minor = -1
			if _, err := fmt.Sscanf(s, "%d", &v.Major); err != nil {
				return Version{}, fmt.Errorf("error parsing version %q: %v", s, err)
			}
		}
	}
	if v.Major < 0 || v.Minor < -1 || v.Patch < -1 {
		return Version{}, fmt.Errorf("invalid version: %s", s)
	}
	return v, nil
}

// ParseLuaVersion reads the interpreter's _VERSION string, e.g. "Lua 5.2".
func ParseLuaVersion(s string) (Version, error) {
	name, num, ok := strings.Cut(strings.TrimSpace(s), " ")
	if !ok || name != "Lua" {
		return Version{}, fmt.Errorf("invalid lua version string: %q", s)
	}
	return ParseVersion(num)
}

// Compare returns -1, 0 or 1 as v is older than, equal to or newer than other.
func (v Version) Compare(other Version) int {
	for _, d := range [...]int{v.Major - other.Major, v.Minor - other.Minor, v.Patch - other.Patch} {
		switch {
		case d > 0:
			return 1
		case d < 0:
			return -1
		}
	}
	return 0
}

func (v Version) String() string {
	switch {
	case v.Patch != -1:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	case v.Minor != -1:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d", v.Major)
}

// MinorString returns "major.minor", the form used in rocks tree paths
// such as share/lua/5.2.
func (v Version) MinorString() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}
