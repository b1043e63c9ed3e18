package ttlcache

// Namespace partitions cache entries.
type Namespace string

const (
	Search    Namespace = "search"
	SearchIDs Namespace = "searchIDs"
	Compound  Namespace = "compound"
	// Media is the identity store, keyed by media id.
	Media    Namespace = "media"
	Episodes Namespace = "episodes"
	General  Namespace = "general"
)

// Namespaces lists every namespace in display order.
func Namespaces() []Namespace {
	return []Namespace{Search, SearchIDs, Compound, Media, Episodes, General}
}

// ParseNamespace matches name against the known namespaces.
func ParseNamespace(name string) (Namespace, bool) {
	for _, ns := range Namespaces() {
		if string(ns) == name {
			return ns, true
		}
	}
	return "", false
}

// Persisted reports whether the namespace is mirrored to the store.
// Compound lookups are only meaningful within one run.
func (n Namespace) Persisted() bool {
	return n != Compound
}

func (n Namespace) normalized() bool {
	return n == Search || n == SearchIDs
}

func persistedNamespaces() []Namespace {
	out := make([]Namespace, 0, 5)
	for _, ns := range Namespaces() {
		if ns.Persisted() {
			out = append(out, ns)
		}
	}
	return out
}
