package catalog

// Catalog maps node keys to nodes and remembers insertion order. The zero
// value is an empty catalog ready to use.
type Catalog struct {
	keys  []string
	nodes map[string]Node
}

func Make(nodes ...Node) Catalog {
	var c Catalog
	for _, node := range nodes {
		c.Put(node)
	}
	return c
}

// Put stores node under node.Key. Replacing an existing key keeps its position.
func (T *Catalog) Put(node Node) {
	if T.nodes == nil {
		T.nodes = make(map[string]Node)
	}
	if _, ok := T.nodes[node.Key]; !ok {
		T.keys = append(T.keys, node.Key)
	}
	T.nodes[node.Key] = node
}

func (T *Catalog) Get(key string) (Node, bool) {
	node, ok := T.nodes[key]
	return node, ok
}

func (T *Catalog) Has(key string) bool {
	_, ok := T.nodes[key]
	return ok
}

func (T *Catalog) Delete(key string) {
	if _, ok := T.nodes[key]; !ok {
		return
	}
	delete(T.nodes, key)
	for i, k := range T.keys {
		if k == key {
			T.keys = append(T.keys[:i:i], T.keys[i+1:]...)
			break
		}
	}
}

func (T *Catalog) Len() int {
	return len(T.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (T *Catalog) Keys() []string {
	keys := make([]string, len(T.keys))
	copy(keys, T.keys)
	return keys
}

// Nodes returns the nodes in insertion order.
func (T *Catalog) Nodes() []Node {
	nodes := make([]Node, 0, len(T.keys))
	for _, key := range T.keys {
		nodes = append(nodes, T.nodes[key])
	}
	return nodes
}

// Range calls fn for every node in insertion order until fn returns false.
func (T *Catalog) Range(fn func(Node) bool) bool {
	for _, key := range T.keys {
		if !fn(T.nodes[key]) {
			return false
		}
	}
	return true
}

// Clone returns a copy that can be mutated without affecting T.
func (T *Catalog) Clone() Catalog {
	c := Catalog{
		keys:  make([]string, len(T.keys)),
		nodes: make(map[string]Node, len(T.nodes)),
	}
	copy(c.keys, T.keys)
	for k, v := range T.nodes {
		c.nodes[k] = v
	}
	return c
}
