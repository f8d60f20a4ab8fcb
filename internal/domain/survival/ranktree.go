package survival

// Treap-based multiset of risk scores with order statistics.
//
// Ordering: key ASC. Equal keys share a node and bump its count, so size
// counts subjects rather than distinct scores. Priorities come from a
// splitmix64 stream seeded per tree, which keeps runs reproducible.

const rankTreeSeed = 0x9e3779b97f4a7c15

// treap node
type rankNode struct {
	key   float64
	count int
	prio  uint64
	left  *rankNode
	right *rankNode
	size  int
}

func rsize(n *rankNode) int {
	if n == nil {
		return 0
	}
	return n.size
}

func rfix(n *rankNode) {
	if n != nil {
		n.size = n.count + rsize(n.left) + rsize(n.right)
	}
}

func rotateRight(y *rankNode) *rankNode {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	rfix(y)
	rfix(x)
	return x
}

func rotateLeft(x *rankNode) *rankNode {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	rfix(x)
	rfix(y)
	return y
}

type rankTree struct {
	root  *rankNode
	state uint64
}

func newRankTree() *rankTree {
	return &rankTree{state: rankTreeSeed}
}

// nextPrio advances the splitmix64 stream.
func (t *rankTree) nextPrio() uint64 {
	t.state += 0x9e3779b97f4a7c15
	z := t.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Len returns the number of inserted scores.
func (t *rankTree) Len() int { return rsize(t.root) }

// Insert adds one occurrence of key.
func (t *rankTree) Insert(key float64) {
	t.root = t.insert(t.root, key)
}

func (t *rankTree) insert(n *rankNode, key float64) *rankNode {
	if n == nil {
		return &rankNode{key: key, count: 1, prio: t.nextPrio(), size: 1}
	}
	switch {
	case key == n.key:
		n.count++
	case key < n.key:
		n.left = t.insert(n.left, key)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	default:
		n.right = t.insert(n.right, key)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	rfix(n)
	return n
}

// CountBelow returns how many inserted scores are strictly less than key.
func (t *rankTree) CountBelow(key float64) int {
	below := 0
	n := t.root
	for n != nil {
		if key <= n.key {
			n = n.left
			continue
		}
		below += rsize(n.left) + n.count
		n = n.right
	}
	return below
}

// CountEqual returns how many inserted scores equal key.
func (t *rankTree) CountEqual(key float64) int {
	n := t.root
	for n != nil {
		switch {
		case key == n.key:
			return n.count
		case key < n.key:
			n = n.left
		default:
			n = n.right
		}
	}
	return 0
}
