package services

import (
	"strings"
	"sync"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/ports"

	"go.uber.org/zap"
)

// relayTree is one room's relay topology. order preserves insertion order so
// parent selection ties break deterministically.
type relayTree struct {
	root  domain.SocketID
	nodes map[domain.SocketID]*domain.TreeNode
	order []domain.SocketID
}

type treeService struct {
	mu    sync.Mutex
	trees map[domain.RoomName]*relayTree

	maxTier         int
	rootCapacity    int
	defaultCapacity int

	logger *zap.SugaredLogger
}

func NewTreeService(maxTier, rootCapacity, defaultCapacity int, logger *zap.SugaredLogger) ports.TreeService {
	return &treeService{
		trees:           make(map[domain.RoomName]*relayTree),
		maxTier:         maxTier,
		rootCapacity:    rootCapacity,
		defaultCapacity: defaultCapacity,
		logger:          logger,
	}
}

// CapacityFor derives a node's relay capacity from its reported network
// class. Mobile and cellular peers never relay.
func CapacityFor(dev domain.DeviceInfo, defaultCapacity int) int {
	switch strings.ToLower(dev.NetworkType) {
	case "mobile", "cellular":
		return 0
	case "wired", "ethernet":
		return 10
	case "wifi", "4g":
		switch {
		case dev.DownlinkMbps >= 10:
			return 5
		case dev.DownlinkMbps >= 5:
			return 4
		case dev.DownlinkMbps >= 2:
			return 3
		default:
			return 2
		}
	default:
		return defaultCapacity
	}
}

// parentScore ranks a candidate parent: shallow tiers dominate, free slots
// break near-ties.
func parentScore(n *domain.TreeNode) int {
	return (1000 - n.Tier*100) + n.FreeSlots()*10
}

// selectParent is a pure function over the tree snapshot. A candidate must
// have a free slot, sit above the tier ceiling, and leave room for the
// attaching subtree's depth. The first maximal node in insertion order wins.
func selectParent(t *relayTree, maxTier, subtreeDepth int, exclude map[domain.SocketID]bool) (domain.SocketID, bool) {
	bestScore := -1
	var best domain.SocketID
	for _, id := range t.order {
		n, ok := t.nodes[id]
		if !ok || exclude[id] {
			continue
		}
		if n.FreeSlots() <= 0 || n.Tier >= maxTier {
			continue
		}
		if n.Tier+1+subtreeDepth > maxTier {
			continue
		}
		if score := parentScore(n); score > bestScore {
			bestScore = score
			best = id
		}
	}
	return best, bestScore >= 0
}

func (s *treeService) EnsureRoot(room domain.RoomName, host domain.SocketID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.trees[room]; ok && t.root == host {
		return
	}
	s.trees[room] = &relayTree{
		root: host,
		nodes: map[domain.SocketID]*domain.TreeNode{
			host: {ID: host, Capacity: s.rootCapacity},
		},
		order: []domain.SocketID{host},
	}
	s.logger.Infow("relay tree created", "room", room, "root", host)
}

func (s *treeService) Insert(room domain.RoomName, id domain.SocketID, dev domain.DeviceInfo) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trees[room]
	if !ok {
		return nil, domain.ErrNoCapacity
	}
	if existing, ok := t.nodes[id]; ok {
		return &domain.Assignment{Parent: existing.Parent, Tier: existing.Tier, Capacity: existing.Capacity}, nil
	}

	parentID, ok := selectParent(t, s.maxTier, 0, nil)
	if !ok {
		return nil, domain.ErrNoCapacity
	}

	parent := t.nodes[parentID]
	node := &domain.TreeNode{
		ID:       id,
		Capacity: CapacityFor(dev, s.defaultCapacity),
		Parent:   parentID,
		Tier:     parent.Tier + 1,
	}
	parent.Children = append(parent.Children, id)
	t.nodes[id] = node
	t.order = append(t.order, id)

	s.logger.Infow("relay node attached",
		"room", room, "node", id, "parent", parentID, "tier", node.Tier, "capacity", node.Capacity)
	return &domain.Assignment{Parent: parentID, Tier: node.Tier, Capacity: node.Capacity}, nil
}

func (s *treeService) Remove(room domain.RoomName, id domain.SocketID) []domain.SocketID {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trees[room]
	if !ok {
		return nil
	}
	node, ok := t.nodes[id]
	if !ok {
		return nil
	}

	// losing the root means the broadcast source is gone; the tree cannot be
	// repaired, so it is dropped and the direct children are reported so the
	// caller can push them to a direct connection
	if id == t.root {
		orphans := append([]domain.SocketID(nil), node.Children...)
		delete(s.trees, room)
		s.logger.Infow("relay tree dropped with root", "room", room, "orphans", len(orphans))
		return orphans
	}

	if parent, ok := t.nodes[node.Parent]; ok {
		parent.Children = removeID(parent.Children, id)
	}
	orphans := append([]domain.SocketID(nil), node.Children...)
	t.deleteNode(id)
	return orphans
}

func (s *treeService) ReassignOrphans(room domain.RoomName, orphans []domain.SocketID) []domain.OrphanResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trees[room]
	if !ok {
		results := make([]domain.OrphanResult, 0, len(orphans))
		for _, id := range orphans {
			results = append(results, domain.OrphanResult{ID: id})
		}
		return results
	}

	var results []domain.OrphanResult
	queue := append([]domain.SocketID(nil), orphans...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		node, ok := t.nodes[id]
		if !ok {
			results = append(results, domain.OrphanResult{ID: id})
			continue
		}

		subtree := t.collectSubtree(id)
		parentID, ok := selectParent(t, s.maxTier, t.subtreeDepth(id), subtree)
		if !ok {
			// no home for this orphan: it falls back to a direct host
			// connection and its own children are orphaned in turn
			queue = append(queue, node.Children...)
			if parent, ok := t.nodes[node.Parent]; ok {
				parent.Children = removeID(parent.Children, id)
			}
			t.deleteNode(id)
			results = append(results, domain.OrphanResult{ID: id})
			continue
		}

		parent := t.nodes[parentID]
		node.Parent = parentID
		parent.Children = append(parent.Children, id)
		t.retier(id, parent.Tier+1)
		results = append(results, domain.OrphanResult{ID: id, Assigned: true, Parent: parentID, Tier: node.Tier})
		s.logger.Infow("orphan reassigned", "room", room, "node", id, "parent", parentID, "tier", node.Tier)
	}
	return results
}

func (s *treeService) Destroy(room domain.RoomName) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.trees, room)
}

func (s *treeService) Nodes(room domain.RoomName) []domain.SocketID {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trees[room]
	if !ok {
		return nil
	}
	return append([]domain.SocketID(nil), t.order...)
}

func (s *treeService) Size(room domain.RoomName) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trees[room]
	if !ok {
		return 0
	}
	return len(t.nodes)
}

func (t *relayTree) deleteNode(id domain.SocketID) {
	delete(t.nodes, id)
	t.order = removeID(t.order, id)
}

// collectSubtree returns the node and all its descendants, used to keep an
// orphan from reattaching beneath itself.
func (t *relayTree) collectSubtree(id domain.SocketID) map[domain.SocketID]bool {
	set := map[domain.SocketID]bool{id: true}
	queue := []domain.SocketID{id}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if n, ok := t.nodes[next]; ok {
			for _, child := range n.Children {
				if !set[child] {
					set[child] = true
					queue = append(queue, child)
				}
			}
		}
	}
	return set
}

// subtreeDepth is the depth of the subtree hanging off id (0 for a leaf).
func (t *relayTree) subtreeDepth(id domain.SocketID) int {
	n, ok := t.nodes[id]
	if !ok {
		return 0
	}
	depth := 0
	for _, child := range n.Children {
		if d := t.subtreeDepth(child) + 1; d > depth {
			depth = d
		}
	}
	return depth
}

// retier rewrites tiers through a reattached subtree so every node keeps
// tier == parent tier + 1.
func (t *relayTree) retier(id domain.SocketID, tier int) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	n.Tier = tier
	for _, child := range n.Children {
		t.retier(child, tier+1)
	}
}

func removeID(ids []domain.SocketID, id domain.SocketID) []domain.SocketID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
