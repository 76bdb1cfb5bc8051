package core

import "fmt"

// Capability classifies what kind of work an agent can take on.
type Capability string

const (
	CapabilityCoding        Capability = "coding"
	CapabilityTesting       Capability = "testing"
	CapabilityReview        Capability = "review"
	CapabilityDocumentation Capability = "documentation"
	CapabilityArchitecture  Capability = "architecture"
	CapabilityDebugging     Capability = "debugging"
	CapabilitySecurity      Capability = "security"
	CapabilityDevops        Capability = "devops"
	CapabilityResearch      Capability = "research"
)

func (c Capability) String() string {
	return string(c)
}

func (c Capability) IsValid() bool {
	switch c {
	case CapabilityCoding, CapabilityTesting, CapabilityReview, CapabilityDocumentation,
		CapabilityArchitecture, CapabilityDebugging, CapabilitySecurity,
		CapabilityDevops, CapabilityResearch:
		return true
	}
	return false
}

func ParseCapability(raw string) (Capability, error) {
	c := Capability(raw)
	if !c.IsValid() {
		return "", NewError(CodeValidationError, fmt.Sprintf("invalid capability: %q", raw), map[string]any{
			"field":  "capabilities",
			"actual": raw,
		})
	}
	return c, nil
}
