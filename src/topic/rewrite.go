// Package topic implements the pure, total topic-rewriting function that
// enforces multi-tenant isolation: every publish/subscribe topic is
// prefixed with the authenticated tenant's namespace before it reaches the
// broker's routing table.
package topic

import (
	"errors"
	"strconv"
	"strings"
)

// ErrReserved is returned when a client-supplied topic falls inside a
// reserved MQTT namespace ($SYS/, $share/, $queue/).
var ErrReserved = errors.New("reserved topic")

var reservedPrefixes = []string{"$SYS/", "$share/", "$queue/"}

// Rewrite prepends the tenant namespace to topic, or fails with ErrReserved
// if topic begins with a reserved prefix. No other interpretation of topic
// is performed: wildcards, leading/trailing/doubled slashes, and the empty
// string are all passed through unchanged after the prefix. A client-
// supplied literal "tenants/..." prefix is treated as an ordinary suffix —
// that is the isolation guarantee, since the authenticated tenantID is
// always placed first by the server.
func Rewrite(t string, tenantID int64) (string, error) {
	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(t, prefix) {
			return "", ErrReserved
		}
	}
	return "tenants/" + strconv.FormatInt(tenantID, 10) + "/" + t, nil
}
