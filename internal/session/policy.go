package session

import (
	"fmt"
	"strings"
)

// Policy selects how chat and signaling are routed.
//
// PolicyStrict only routes once both seats are claimed: chat goes to every
// connection and negotiation goes to the other participant only.
// PolicyBroadcast routes whatever the occupancy: chat goes to every connection
// and negotiation goes to every connection except the sender.
//
// Call-control signals always go to the other participant only.
type Policy string

const (
	PolicyStrict    Policy = "strict"
	PolicyBroadcast Policy = "broadcast"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyStrict, PolicyBroadcast:
		return p, nil
	case "":
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown relay policy %q", s)
	}
}
