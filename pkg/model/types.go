package model

// Metadata tree served once per session. Only the two UI flags on the
// values are ever mutated after load.
type Metadata struct {
	Root *FacetTreeLevel `json:"root"`
}

type FacetTreeLevel struct {
	Name   string                 `json:"name"`
	Values []*FacetTreeLevelValue `json:"values"`
}

// A value is a leaf iff Next is nil. Only leaves carry a stable Hash and a
// stored IsSelected flag; for non-leaves selection is always derived from
// the subtree.
type FacetTreeLevelValue struct {
	Value      string          `json:"value"`
	Hash       string          `json:"hash,omitempty"`
	Next       *FacetTreeLevel `json:"next"`
	IsOpened   bool            `json:"isOpened"`
	IsSelected bool            `json:"isSelected"`
}

func (v *FacetTreeLevelValue) IsLeaf() bool {
	return v.Next == nil
}

// One entry of a tree filter request, e.g. {name: "species", value: "HomoSapiens"}.
type FilterEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type TreeFilter struct {
	Entries []FilterEntry `json:"entries"`
}

// One member sequence of a cluster.
type ClusterEntry struct {
	CDR3  string `json:"cdr3"`
	Count int    `json:"count"`
}

type Cluster struct {
	ClusterID string         `json:"clusterId"`
	Size      int            `json:"size"`
	Length    int            `json:"length"`
	VSegm     string         `json:"vsegm"`
	JSegm     string         `json:"jsegm"`
	Entries   []ClusterEntry `json:"entries"`
	Meta      ClusterMeta    `json:"meta"`
	ImageURL  string         `json:"imageUrl,omitempty"`
}

// Epitope groups clusters that share the same epitope sequence. Identity
// across incremental loads is by Hash only.
type Epitope struct {
	Epitope  string     `json:"epitope"`
	Hash     string     `json:"hash"`
	Clusters []*Cluster `json:"clusters"`
}

// Ranked unit of a CDR3 sequence search.
type SearchResultEntry struct {
	Info    float64  `json:"info"`
	CDR3    string   `json:"cdr3"`
	Cluster *Cluster `json:"cluster"`
}

type CDR3SearchOptions struct {
	CDR3      string `json:"cdr3"`
	Substring bool   `json:"substring"`
	Gene      string `json:"gene"`
	Top       int    `json:"top"`
}

func DefaultCDR3SearchOptions() CDR3SearchOptions {
	return CDR3SearchOptions{CDR3: "", Substring: false, Gene: "Both", Top: 15}
}

// Raw and size-normalized entry lists are kept side by side so the view can
// toggle normalization without refetching.
type CDR3SearchResult struct {
	Options      CDR3SearchOptions    `json:"options"`
	Clusters     []*SearchResultEntry `json:"clusters"`
	ClustersNorm []*SearchResultEntry `json:"clustersNorm"`
}

func EmptyCDR3SearchResult() *CDR3SearchResult {
	return &CDR3SearchResult{Options: DefaultCDR3SearchOptions()}
}

type ViewOptions struct {
	IsNormalized bool `json:"isNormalized"`
}
