// Package party parses node identity strings such as
// "O=PLTeam1, L=Singapore, C=SG" and derives the role flags the client and
// the demo backend key their behaviour on.
package party

import (
	"strings"
)

const (
	platformLeadPrefix = "PL"
	deliveryTeamPrefix = "DL"
)

// Name is a parsed identity string.
type Name struct {
	Raw   string
	Attrs map[string]string
}

// Parse splits s on commas and then on '='. Pairs without '=' are ignored.
func Parse(s string) Name {
	n := Name{Raw: strings.TrimSpace(s), Attrs: map[string]string{}}
	for _, part := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		n.Attrs[k] = strings.TrimSpace(v)
	}
	return n
}

func (n Name) String() string { return n.Raw }

// Organisation returns the O attribute.
func (n Name) Organisation() string { return n.Attrs["O"] }

func (n Name) IsSponsor() bool { return n.Organisation() == "Sponsor" }

func (n Name) IsPlatformLead() bool {
	return strings.HasPrefix(n.Organisation(), platformLeadPrefix)
}

func (n Name) IsDeliveryTeam() bool {
	return strings.HasPrefix(n.Organisation(), deliveryTeamPrefix)
}

func (n Name) IsCIO() bool { return n.Organisation() == "CIO" }

func (n Name) IsCOO() bool { return n.Organisation() == "COO" }

// Role is a short label for display.
func (n Name) Role() string {
	switch {
	case n.IsSponsor():
		return "sponsor"
	case n.IsPlatformLead():
		return "platform lead"
	case n.IsDeliveryTeam():
		return "delivery team"
	case n.IsCIO():
		return "CIO"
	case n.IsCOO():
		return "COO"
	default:
		return "observer"
	}
}

// Same reports whether two identity strings name the same party, ignoring
// attribute order and spacing.
func Same(a, b string) bool {
	pa, pb := Parse(a), Parse(b)
	if len(pa.Attrs) == 0 || len(pa.Attrs) != len(pb.Attrs) {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	for k, v := range pa.Attrs {
		if pb.Attrs[k] != v {
			return false
		}
	}
	return true
}
