package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yumyai/structable/logger"
	"github.com/yumyai/structable/pkg/api"
	"github.com/yumyai/structable/pkg/event"
	"github.com/yumyai/structable/pkg/facet"
	"github.com/yumyai/structable/pkg/links"
	"github.com/yumyai/structable/pkg/model"
	"github.com/yumyai/structable/pkg/notify"
)

// State distinguishes the two search modes. Switching states never clears
// the other mode's cached results; both persist for the whole session.
type State int

const (
	SearchTree State = iota
	SearchCDR3
)

func (s State) String() string {
	switch s {
	case SearchTree:
		return "tree"
	case SearchCDR3:
		return "cdr3"
	default:
		return "unknown"
	}
}

// MinSubstringCDR3Length is the shortest query accepted in substring mode.
const MinSubstringCDR3Length = 3

// DeepLink is the fully qualified filter tuple carried by a structure page
// URL.
type DeepLink struct {
	Species     string
	TCRChain    string
	MHCClass    string
	Gene        string
	EpitopeSeq  string
	StructureID string
}

// Controller orchestrates the search session: tree selection, filter and
// CDR3 requests, result aggregation and the reactive surface the
// presentation layer consumes.
type Controller struct {
	source   api.Source
	sched    event.Scheduler
	notifier notify.Sink

	mu       sync.Mutex
	state    State
	loading  bool
	loaded   bool
	loadDone chan struct{}
	loadErr  error
	tree     *facet.Tree

	bus          *event.Bus
	metadata     *event.Subject[*model.Metadata]
	selected     *event.Subject[[]*model.FacetTreeLevelValue]
	epitopes     *event.Subject[[]*model.Epitope]
	options      *event.Subject[model.ViewOptions]
	searchResult *event.Subject[*model.CDR3SearchResult]
	loadingState *event.Subject[bool]
}

func NewController(source api.Source, sched event.Scheduler, notifier notify.Sink) *Controller {
	if sched == nil {
		sched = event.RealScheduler{}
	}
	if notifier == nil {
		notifier = notify.LogSink{}
	}
	return &Controller{
		source:       source,
		sched:        sched,
		notifier:     notifier,
		state:        SearchTree,
		bus:          event.NewBus(),
		metadata:     event.NewSubject[*model.Metadata](),
		selected:     event.NewSubject[[]*model.FacetTreeLevelValue](),
		epitopes:     event.NewSubject[[]*model.Epitope](),
		options:      event.NewSubject[model.ViewOptions](),
		searchResult: event.NewSubject[*model.CDR3SearchResult](),
		loadingState: event.NewSubject[bool](),
	}
}

// Load fetches the metadata tree once per session. Concurrent calls
// collapse onto a single in-flight request and all observe its outcome; a
// failed load leaves the controller unloaded so a later call retries.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.loaded {
		c.mu.Unlock()
		return nil
	}
	if c.loading {
		done := c.loadDone
		c.mu.Unlock()
		<-done
		c.mu.Lock()
		err := c.loadErr
		c.mu.Unlock()
		return err
	}
	c.loading = true
	c.loadDone = make(chan struct{})
	done := c.loadDone
	c.mu.Unlock()

	metadata, err := c.source.Metadata(ctx)

	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		close(done)
	}()
	c.loading = false
	if err != nil {
		c.loadErr = err
		return err
	}
	c.loadErr = nil
	c.loaded = true
	c.tree = facet.NewTree(metadata.Root)

	// Seed every reactive slot exactly once.
	c.metadata.Next(metadata)
	c.selected.Next([]*model.FacetTreeLevelValue{})
	c.epitopes.Next([]*model.Epitope{})
	c.options.Next(model.ViewOptions{IsNormalized: false})
	c.searchResult.Next(model.EmptyCDR3SearchResult())
	c.loadingState.Next(false)

	logger.Debug("Structures metadata loaded", zap.Int("leaves", len(c.tree.Leaves())))
	return nil
}

func (c *Controller) SetState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tree exposes the facet tree for selection operations. Nil before Load.
func (c *Controller) Tree() *facet.Tree {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree
}

// Reactive surface.

func (c *Controller) Events() *event.Bus { return c.bus }

func (c *Controller) Metadata() *event.Subject[*model.Metadata] { return c.metadata }

func (c *Controller) Selected() *event.Subject[[]*model.FacetTreeLevelValue] { return c.selected }

func (c *Controller) Epitopes() *event.Subject[[]*model.Epitope] { return c.epitopes }

func (c *Controller) Options() *event.Subject[model.ViewOptions] { return c.options }

func (c *Controller) SearchResult() *event.Subject[*model.CDR3SearchResult] { return c.searchResult }

func (c *Controller) Loading() *event.Subject[bool] { return c.loadingState }

func (c *Controller) SetOptions(options model.ViewOptions) {
	c.options.Next(options)
}

func (c *Controller) FireScrollUpdateEvent() { c.bus.Publish(event.UpdateScroll) }

func (c *Controller) FireResizeUpdateEvent() { c.bus.Publish(event.UpdateResize) }

func (c *Controller) FireHideEvent() { c.bus.Publish(event.HideClusters) }

// UpdateSelected recomputes the selected-leaves snapshot, notifies
// subscribers, and schedules the deferred scroll recomputation.
func (c *Controller) UpdateSelected() {
	c.mu.Lock()
	tree := c.tree
	c.mu.Unlock()
	if tree == nil {
		return
	}

	leaves := tree.SelectedLeaves()
	values := make([]*model.FacetTreeLevelValue, 0, len(leaves))
	for _, leaf := range leaves {
		values = append(values, leaf.Value)
	}
	c.selected.Next(values)
	c.bus.Publish(event.UpdateSelected)
	c.sched.After(event.ScrollUpdateDelay, func() {
		c.bus.Publish(event.UpdateScroll)
	})
}

// Select recomputes the selection, issues the filter request and merges the
// normalized result into the accumulated epitope list. The accumulated
// state is left untouched when the request fails.
func (c *Controller) Select(ctx context.Context, filter model.TreeFilter) error {
	c.UpdateSelected()
	c.loadingState.Next(true)

	incoming, err := c.source.Filter(ctx, filter)
	if err != nil {
		c.loadingState.Next(false)
		c.notifier.Notify(notify.New(notify.LevelError, "Structures", "Unable to load results", 0))
		logger.Error("Filter request failed", zap.Error(err))
		return err
	}

	current, _ := c.epitopes.Latest()
	c.epitopes.Next(c.mergeEpitopes(current, incoming))
	c.loadingState.Next(false)
	c.notifier.Notify(notify.New(notify.LevelInfo, "Structures", "Loaded successfully", notify.SuccessTTL))
	return nil
}

// mergeEpitopes appends genuinely new epitopes to the accumulated list.
// An epitope hash already present is never replaced or merged, so repeated
// or overlapping facet queries keep at most one in-memory copy per hash.
// Incoming clusters without a structure identifier are dropped silently.
func (c *Controller) mergeEpitopes(current, incoming []*model.Epitope) []*model.Epitope {
	seen := make(map[string]struct{}, len(current))
	for _, ep := range current {
		seen[ep.Hash] = struct{}{}
	}

	merged := append(make([]*model.Epitope, 0, len(current)+len(incoming)), current...)
	for _, ep := range incoming {
		if _, ok := seen[ep.Hash]; ok {
			continue
		}
		seen[ep.Hash] = struct{}{}

		kept := make([]*model.Cluster, 0, len(ep.Clusters))
		for _, cluster := range ep.Clusters {
			if !cluster.Meta.HasStructure() {
				continue
			}
			kept = append(kept, cluster)
		}
		model.SortClustersBySize(kept)
		for _, cluster := range kept {
			links.AssignClusterImage(cluster)
		}
		ep.Clusters = kept
		merged = append(merged, ep)
	}
	return merged
}

// SearchCDR3 validates and runs a sequence search. Both the raw and the
// size-normalized lists are ranked by informativeness then cluster size.
func (c *Controller) SearchCDR3(ctx context.Context, cdr3 string, substring bool, gene string, top int) error {
	if cdr3 == "" {
		c.notifier.Notify(notify.New(notify.LevelWarn, "Structures CDR3", "Empty search input", 0))
		return nil
	}
	if substring && len(cdr3) < MinSubstringCDR3Length {
		c.notifier.Notify(notify.New(notify.LevelWarn, "Structures CDR3",
			"Length of CDR3 substring should be greater or equal than 3", 0))
		return nil
	}

	c.loadingState.Next(true)
	result, err := c.source.SearchCDR3(ctx, api.CDR3Request{CDR3: cdr3, Substring: substring, Gene: gene, Top: top})
	if err != nil {
		c.loadingState.Next(false)
		c.notifier.Notify(notify.New(notify.LevelError, "Structures CDR3", "Unable to load results", 0))
		logger.Error("CDR3 search failed", zap.Error(err))
		return err
	}

	result.Clusters = c.prepareEntries(result.Clusters)
	result.ClustersNorm = c.prepareEntries(result.ClustersNorm)

	c.searchResult.Next(result)
	c.loadingState.Next(false)
	c.notifier.Notify(notify.New(notify.LevelInfo, "Structures CDR3", "Loaded successfully", notify.SuccessTTL))
	return nil
}

func (c *Controller) prepareEntries(entries []*model.SearchResultEntry) []*model.SearchResultEntry {
	kept := make([]*model.SearchResultEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Cluster == nil || !entry.Cluster.Meta.HasStructure() {
			continue
		}
		kept = append(kept, entry)
	}
	model.SortEntries(kept)
	for _, entry := range kept {
		links.AssignClusterImage(entry.Cluster)
	}
	return kept
}

// Discard clears a tree value (fanning out over its subtree), recomputes
// the selection and drops epitopes that are no longer selected.
func (c *Controller) Discard(value *model.FacetTreeLevelValue) {
	facet.Discard(value)
	c.UpdateSelected()
	c.updateEpitopes()
}

// DiscardByHash discards the leaf carrying the given epitope hash. Unknown
// hashes are a silent no-op.
func (c *Controller) DiscardByHash(hash string) {
	c.mu.Lock()
	tree := c.tree
	c.mu.Unlock()
	if tree == nil {
		return
	}
	if leaf := tree.FindLeaf(hash); leaf != nil {
		facet.Discard(leaf.Value)
	}
	c.UpdateSelected()
	c.updateEpitopes()
}

// DiscardAll clears the whole selection and the accumulated epitopes.
func (c *Controller) DiscardAll() {
	c.mu.Lock()
	tree := c.tree
	c.mu.Unlock()
	if tree == nil {
		return
	}
	for _, leaf := range tree.SelectedLeaves() {
		facet.Discard(leaf.Value)
	}
	c.UpdateSelected()
	c.updateEpitopes()
}

// updateEpitopes recomputes the retained epitope list from the current
// selection. Removal always goes through this recomputation; merges remain
// strictly additive.
func (c *Controller) updateEpitopes() {
	selected, ok := c.selected.Latest()
	if !ok {
		return
	}
	retained := make(map[string]struct{}, len(selected))
	for _, value := range selected {
		retained[value.Hash] = struct{}{}
	}

	current, _ := c.epitopes.Latest()
	remaining := make([]*model.Epitope, 0, len(current))
	for _, ep := range current {
		if _, ok := retained[ep.Hash]; ok {
			remaining = append(remaining, ep)
		}
	}
	c.epitopes.Next(remaining)
}

// FilterByURL serves a deep link: it awaits metadata, tries to highlight
// the addressed leaf in the tree, and issues the equivalent filter request.
// Tree highlighting and the server query are independent side effects; a
// path that does not resolve aborts the highlighting silently but the
// request is sent regardless.
func (c *Controller) FilterByURL(ctx context.Context, link DeepLink) error {
	if err := c.Load(ctx); err != nil {
		return err
	}
	c.SetState(SearchTree)

	c.mu.Lock()
	tree := c.tree
	c.mu.Unlock()

	if value := tree.ResolvePath(link.Species, link.TCRChain, link.MHCClass, link.Gene, link.EpitopeSeq); value != nil {
		facet.Select(value)
	}

	return c.Select(ctx, model.TreeFilter{Entries: []model.FilterEntry{
		{Name: "species", Value: link.Species},
		{Name: "chain", Value: link.TCRChain},
		{Name: "mhc.class", Value: link.MHCClass},
		{Name: "gene", Value: link.Gene},
		{Name: "epitope", Value: link.EpitopeSeq},
	}})
}

// SearchCDR3ByURL serves a sequence-search deep link with default options.
func (c *Controller) SearchCDR3ByURL(ctx context.Context, query string) error {
	if err := c.Load(ctx); err != nil {
		return err
	}
	c.SetState(SearchCDR3)
	defaults := model.DefaultCDR3SearchOptions()
	return c.SearchCDR3(ctx, query, defaults.Substring, defaults.Gene, defaults.Top)
}

// Members requests the member export of a cluster and returns the download
// link.
func (c *Controller) Members(ctx context.Context, cid string) (string, error) {
	resp, err := c.source.Members(ctx, api.MembersRequest{CID: cid, Format: "tsv"})
	if err != nil {
		c.notifier.Notify(notify.New(notify.LevelError, "Structures", "Unable to export results", 0))
		logger.Error("Members export failed", zap.String("cid", cid), zap.Error(err))
		return "", err
	}
	c.notifier.Notify(notify.New(notify.LevelInfo, "Structures export", "Download will start automatically", 0))
	return resp.Link, nil
}
