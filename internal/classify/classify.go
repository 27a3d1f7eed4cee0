// Package classify maps containers to the node roles the agent watches.
//
// Classification is deliberately dumb: a role is assigned to the first
// container whose name or image contains one of the role's keywords. There is
// no scoring and no exclusivity, so a container may win several roles (a
// "bitcoincash" image also contains "bitcoin"). Operators name their
// containers accordingly.
package classify

import (
	"strings"

	"github.com/wiktac/node-agent/internal/dockerproxy"
)

// Role identifies one watched component on the node.
type Role string

const (
	RoleBTC        Role = "btc"
	RoleBCH        Role = "bch"
	RoleDGB        Role = "dgb"
	RoleMiningCore Role = "miningcore"
)

// Roles lists all known roles in matching and restart order.
var Roles = []Role{RoleBTC, RoleBCH, RoleDGB, RoleMiningCore}

// roleKeywords are matched as lowercase substrings against the container's
// first name and its image.
var roleKeywords = map[Role][]string{
	RoleBTC:        {"bitcoin", "bitcoind", "bitcoin-node"},
	RoleBCH:        {"bch", "bitcoincash", "bitcoin-cash", "bchn"},
	RoleDGB:        {"digibyte", "dgb"},
	RoleMiningCore: {"miningcore"},
}

// Classify assigns each role the first container whose name or image contains
// one of the role's keywords. Roles without a matching container are absent
// from the result. The full container record is returned so callers can act
// on its state.
func Classify(containers []dockerproxy.Container) map[Role]dockerproxy.Container {
	out := make(map[Role]dockerproxy.Container, len(Roles))
	for _, role := range Roles {
		keywords := roleKeywords[role]
		for _, c := range containers {
			if matchesAny(c, keywords) {
				out[role] = c
				break
			}
		}
	}
	return out
}

func matchesAny(c dockerproxy.Container, keywords []string) bool {
	name := strings.ToLower(c.Name())
	image := strings.ToLower(c.Image)
	for _, k := range keywords {
		if strings.Contains(name, k) || strings.Contains(image, k) {
			return true
		}
	}
	return false
}

// IsDown reports whether a container state calls for a restart.
func IsDown(state string) bool {
	switch strings.ToLower(state) {
	case "exited", "dead":
		return true
	default:
		return false
	}
}
