package domain

// DeviceInfo is the network class a joining peer reports. Capacity is derived
// from it exactly once, at insertion.
type DeviceInfo struct {
	NetworkType  string  `json:"network_type"`
	DownlinkMbps float64 `json:"downlink_mbps"`
}

// TreeNode is one peer in a room's relay tree.
//
// Invariants: Tier == parent tier + 1 for non-root nodes, len(Children) never
// exceeds Capacity, and Tier never exceeds the configured maximum.
type TreeNode struct {
	ID       SocketID
	Capacity int
	Parent   SocketID // empty for the root
	Children []SocketID
	Tier     int
}

func (n *TreeNode) FreeSlots() int {
	return n.Capacity - len(n.Children)
}

// Assignment is the result of attaching a node to a relay parent.
type Assignment struct {
	Parent   SocketID
	Tier     int
	Capacity int
}

// OrphanResult reports the outcome of reattaching one orphan after its parent
// left the tree. Unassigned orphans fall back to a direct host connection.
type OrphanResult struct {
	ID       SocketID
	Assigned bool
	Parent   SocketID
	Tier     int
}
