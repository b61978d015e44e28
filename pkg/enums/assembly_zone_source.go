package enums

import "fmt"

// AssemblyZoneSource records how a postcode received its assembly zone.
type AssemblyZoneSource string

const (
	AssemblyZoneSourceManual AssemblyZoneSource = "manual"
	AssemblyZoneSourceRadius AssemblyZoneSource = "radius"
)

var validAssemblyZoneSources = []AssemblyZoneSource{
	AssemblyZoneSourceManual,
	AssemblyZoneSourceRadius,
}

// String implements fmt.Stringer.
func (a AssemblyZoneSource) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssemblyZoneSource.
func (a AssemblyZoneSource) IsValid() bool {
	for _, candidate := range validAssemblyZoneSources {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAssemblyZoneSource converts raw input into a AssemblyZoneSource.
func ParseAssemblyZoneSource(value string) (AssemblyZoneSource, error) {
	for _, candidate := range validAssemblyZoneSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assembly zone source %q", value)
}
