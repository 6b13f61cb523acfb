package models

import "fmt"

// Status severity tier, ordered GOOD < WARNING < DANGER
type Status int

const (
	StatusGood Status = iota
	StatusWarning
	StatusDanger
)

var statusNames = [...]string{"good", "warning", "danger"}

func (s Status) String() string {
	if s < StatusGood || s > StatusDanger {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the lower-case name, so JSON carries "good" / "warning" / "danger"
func (s Status) MarshalText() ([]byte, error) {
	if s < StatusGood || s > StatusDanger {
		return nil, fmt.Errorf("invalid status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus inverse of String
func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if name == s {
			return Status(i), nil
		}
	}
	return StatusGood, fmt.Errorf("unknown status %q", s)
}

var statusColors = [...]string{"#22c55e", "#eab308", "#ef4444"}

// Color dashboard color of the tier
func (s Status) Color() string {
	if s < StatusGood || s > StatusDanger {
		return ""
	}
	return statusColors[s]
}
