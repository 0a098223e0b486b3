package node

import "fmt"

// PortCategory classifies what travels over a port.
type PortCategory uint8

const (
	// Data ports carry one value per tick and accept a single writer.
	Data PortCategory = iota
	// Message ports carry zero or more messages per tick and admit fan-in.
	Message
	// DomainSpecific ports are opaque to the engine; an optional validator
	// decides which connections are legal.
	DomainSpecific
)

func (c PortCategory) String() string {
	switch c {
	case Data:
		return "data"
	case Message:
		return "message"
	case DomainSpecific:
		return "domain-specific"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// PortID is the index of a port in a descriptor's input or output list.
type PortID uint16

// Port describes one input or output attachment point of a node type.
type Port struct {
	Name     string
	Category PortCategory
	// Array ports hold a per-node number of independently connectable elements.
	Array bool
	// Default is what readers observe before the port has ever been written
	// or while an input is unconnected.
	Default any
}

// TraversalFlags tags a connection with the categories of both of its ends.
type TraversalFlags uint8

const (
	TraversalSourceData TraversalFlags = 1 << iota
	TraversalSourceMessage
	TraversalSourceDomain
	TraversalDestData
	TraversalDestMessage
	TraversalDestDomain
	// TraversalFeedback marks an edge read with a one-tick delay. It is
	// excluded from same-tick ordering.
	TraversalFeedback

	TraversalAll TraversalFlags = 0xff
)

// SourceFlag returns the source-side flag for a port category.
func (c PortCategory) SourceFlag() TraversalFlags {
	switch c {
	case Message:
		return TraversalSourceMessage
	case DomainSpecific:
		return TraversalSourceDomain
	default:
		return TraversalSourceData
	}
}

// DestFlag returns the destination-side flag for a port category.
func (c PortCategory) DestFlag() TraversalFlags {
	switch c {
	case Message:
		return TraversalDestMessage
	case DomainSpecific:
		return TraversalDestDomain
	default:
		return TraversalDestData
	}
}

// EdgeFlags derives the traversal flags of an edge from its end categories.
func EdgeFlags(src, dst PortCategory, feedback bool) TraversalFlags {
	f := src.SourceFlag() | dst.DestFlag()
	if feedback {
		f |= TraversalFeedback
	}
	return f
}

// Has reports whether every bit of mask is set.
func (f TraversalFlags) Has(mask TraversalFlags) bool {
	return f&mask == mask
}

// Any reports whether at least one bit of mask is set.
func (f TraversalFlags) Any(mask TraversalFlags) bool {
	return f&mask != 0
}

// IsFeedback reports whether the edge is read with a one-tick delay.
func (f TraversalFlags) IsFeedback() bool {
	return f&TraversalFeedback != 0
}

// ExclusiveDestination reports whether the destination accepts a single writer.
func (f TraversalFlags) ExclusiveDestination() bool {
	return f&TraversalDestData != 0
}
