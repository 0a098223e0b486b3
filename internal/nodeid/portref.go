// internal/nodeid/portref.go
package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segmentRegex matches `name` or `name[index]`.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)(?:\[(\d+)\])?$`)

// PortRef is a textual reference to a node port, `node.port` or
// `node.port[index]`. Index is -1 when the reference carries no index.
type PortRef struct {
	Node  string
	Port  string
	Index int
}

// HasIndex reports whether the reference names an array element.
func (r PortRef) HasIndex() bool {
	return r.Index != -1
}

// String serializes the reference into its canonical form.
func (r PortRef) String() string {
	if r.HasIndex() {
		return fmt.Sprintf("%s.%s[%d]", r.Node, r.Port, r.Index)
	}
	return r.Node + "." + r.Port
}

// ParsePortRef parses the canonical `node.port[index]` form.
func ParsePortRef(raw string) (PortRef, error) {
	if raw == "" {
		return PortRef{}, fmt.Errorf("port reference cannot be empty")
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 2 {
		return PortRef{}, fmt.Errorf("port reference %q must have the form node.port", raw)
	}
	if parts[0] == "" || parts[1] == "" {
		return PortRef{}, fmt.Errorf("port reference %q contains an empty segment", raw)
	}
	if !segmentRegex.MatchString(parts[0]) || strings.Contains(parts[0], "[") {
		return PortRef{}, fmt.Errorf("invalid node name in port reference: %q", parts[0])
	}

	matches := segmentRegex.FindStringSubmatch(parts[1])
	if matches == nil {
		return PortRef{}, fmt.Errorf("invalid port segment format: %q", parts[1])
	}

	ref := PortRef{Node: parts[0], Port: matches[1], Index: -1}
	if matches[2] != "" {
		index, err := strconv.Atoi(matches[2])
		if err != nil {
			return PortRef{}, fmt.Errorf("port index in %q is out of range: %w", raw, err)
		}
		ref.Index = index
	}
	return ref, nil
}
