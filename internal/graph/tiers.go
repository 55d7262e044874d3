package graph

// TierOrder lists node types from lowest to highest rank. Auto-wire attaches
// each tier to the one directly above it.
var TierOrder = []NodeType{
	TypeNode,
	TypeRouter,
	TypeHub,
	TypeGame,
}

// Rank is the index of t in TierOrder, or -1 for an unknown type.
func (t NodeType) Rank() int {
	if t == "" {
		return 0
	}
	for i, tier := range TierOrder {
		if tier == t {
			return i
		}
	}
	return -1
}

// ParentTier is the tier directly above t; ok is false for the top tier.
func (t NodeType) ParentTier() (NodeType, bool) {
	r := t.Rank()
	if r < 0 || r+1 >= len(TierOrder) {
		return "", false
	}
	return TierOrder[r+1], true
}

func (t NodeType) Valid() bool { return t.Rank() >= 0 }
