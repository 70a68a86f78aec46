package drive

import (
	"errors"

	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"
)

// ErrEstimateModeNoRead is returned by Context.Get when called in
// ModeEstimate. Estimate mode must produce a cost upper bound without
// ever reading the tree store; a handler that needs a value to decide
// what to write cannot run in this mode and must instead assume the
// conservative case (e.g. "the subtree does not exist yet").
var ErrEstimateModeNoRead = errors.New("drive: state reads are not allowed in estimate mode")

// Engine is the batch engine (§4.4): it turns the high-level operations a
// domain module issues into a single atomic low-level tree-store batch,
// in either apply mode (mutates state) or estimate mode (produces a
// worst-case CostVector touching only caller-supplied layer info).
type Engine struct {
	store    treestore.Store
	versions *version.Registry
	cache    *Cache
}

// NewEngine wires a tree store and version registry into a batch engine
// with a fresh pair of block/global caches.
func NewEngine(store treestore.Store, versions *version.Registry) *Engine {
	return &Engine{store: store, versions: versions, cache: NewCache()}
}

// Store exposes the underlying tree store for domain modules that need
// to issue proved/unproved reads directly (fetch and prove paths don't
// go through a batch).
func (e *Engine) Store() treestore.Store { return e.store }

// Versions returns the engine's version registry so domain modules can
// dispatch by feature version.
func (e *Engine) Versions() *version.Registry { return e.versions }

// Cache returns the engine's block/global cache pair.
func (e *Engine) Cache() *Cache { return e.cache }

// HandlerFunc is the shape every high-level operation handler implements:
// given a Context, emit whatever low-level tree operations the operation
// requires.
type HandlerFunc func(ctx *Context) error

// Apply runs fn in apply mode and, if it succeeds, applies the resulting
// batch to the tree store atomically. On any error the batch is
// discarded and the store is left unchanged.
func (e *Engine) Apply(fn HandlerFunc) error {
	ctx := newContext(e, ModeApply, nil)
	if err := fn(ctx); err != nil {
		return err
	}
	return e.store.ApplyBatch(ctx.batch)
}

// Estimate runs fn in estimate mode against layerInfo and returns the
// worst-case CostVector for the operations fn would have emitted. fn
// must not call Context.Get; doing so returns ErrEstimateModeNoRead.
func (e *Engine) Estimate(fn HandlerFunc, layerInfo treestore.EstimatedLayerInfo) (treestore.CostVector, error) {
	if layerInfo == nil {
		layerInfo = treestore.EstimatedLayerInfo{}
	}
	ctx := newContext(e, ModeEstimate, layerInfo)
	if err := fn(ctx); err != nil {
		return treestore.CostVector{}, err
	}
	return e.store.EstimateCost(ctx.batch, layerInfo)
}

// Context is the per-call handle a HandlerFunc uses to emit operations.
// It hides the apply/estimate distinction behind a single API: handlers
// call Insert/Delete/EnsureSubtree the same way in both modes, and only
// need to branch on Mode() around reads, which estimate mode forbids.
type Context struct {
	engine    *Engine
	mode      Mode
	batch     *treestore.Batch
	layerInfo treestore.EstimatedLayerInfo
}

func newContext(e *Engine, mode Mode, layerInfo treestore.EstimatedLayerInfo) *Context {
	return &Context{engine: e, mode: mode, batch: treestore.NewBatch(), layerInfo: layerInfo}
}

// Mode reports whether this Context is building a real batch or an
// estimate-only one.
func (c *Context) Mode() Mode { return c.mode }

// Engine returns the owning engine, for handlers that need the cache or
// version registry mid-dispatch.
func (c *Context) Engine() *Engine { return c.engine }

// Get reads an element from the tree store. Valid only in ModeApply.
func (c *Context) Get(path [][]byte, key []byte) (*treestore.Element, error) {
	if c.mode != ModeApply {
		return nil, ErrEstimateModeNoRead
	}
	return c.engine.store.Get(path, key)
}

// HasRaw reports whether (path, key) exists, without fetching its value.
// Valid only in ModeApply.
func (c *Context) HasRaw(path [][]byte, key []byte) (bool, error) {
	if c.mode != ModeApply {
		return false, ErrEstimateModeNoRead
	}
	return c.engine.store.HasRaw(path, key)
}

// Insert queues an insert operation into the batch being built.
func (c *Context) Insert(path [][]byte, key []byte, el *treestore.Element) {
	c.batch.Insert(path, key, el)
}

// Delete queues a delete operation into the batch being built.
func (c *Context) Delete(path [][]byte, key []byte) {
	c.batch.Delete(path, key)
}

// DeleteUpTreeWhileEmpty queues a cascading-delete operation bounded by
// maxHeight ancestor levels.
func (c *Context) DeleteUpTreeWhileEmpty(path [][]byte, key []byte, maxHeight uint32) {
	c.batch.DeleteUpTreeWhileEmpty(path, key, int(maxHeight))
}

// EnsureSubtree inserts an empty tree element at (path, key) unless one
// is already pending in this batch or (in apply mode) already present in
// the store. Estimate mode never probes the store: it assumes the
// subtree is absent, which is the conservative (higher-cost) case.
func (c *Context) EnsureSubtree(path [][]byte, key []byte, el *treestore.Element) error {
	if c.batch.HasPendingInsert(path, key) {
		return nil
	}
	if c.mode == ModeApply {
		exists, err := c.engine.store.HasRaw(path, key)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}
	c.Insert(path, key, el)
	return nil
}
