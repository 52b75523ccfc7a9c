package document

import (
	"math"
	"sort"
)

// Cache owns every currently-open Document, indexed both by id and by
// name, and reference-counts openers. It never holds a back-pointer to
// sessions: sessions hold only an int32 id, resolved through the cache
// on each touch, which is how the spec avoids a shared-pointer cycle
// between the cache and each session's open-document set.
type Cache struct {
	store *Store

	byID   map[int32]*Document
	byName map[string]*Document
	nextID int32
}

// NewCache returns an empty Cache backed by store. Id allocation starts
// at 1.
func NewCache(store *Store) *Cache {
	return &Cache{
		store:  store,
		byID:   make(map[int32]*Document),
		byName: make(map[string]*Document),
		nextID: 1,
	}
}

// allocID returns the next id and advances the counter, wrapping to 1
// after math.MaxInt32 rather than overflowing into a negative or zero
// id. Reuse is possible only for ids no longer present in byID.
func (c *Cache) allocID() int32 {
	id := c.nextID
	if c.nextID == math.MaxInt32 {
		c.nextID = 1
	} else {
		c.nextID++
	}
	return id
}

// Open returns the cached Document for name, opening it from disk and
// assigning it a fresh id if it isn't already cached. Each call
// increments the document's opener count; callers must pair every
// successful Open with exactly one later Close.
func (c *Cache) Open(name string) (*Document, error) {
	if doc, ok := c.byName[name]; ok {
		doc.openerCount++
		return doc, nil
	}

	contents, err := c.store.Load(name)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		ID:          c.allocID(),
		Name:        name,
		Contents:    contents,
		openerCount: 1,
	}
	c.byID[doc.ID] = doc
	c.byName[name] = doc
	return doc, nil
}

// Get looks up an already-cached document by id. It does not touch
// disk and does not affect the opener count. Use this only to resolve
// a document a session already holds open; it must never be the entry
// point that hands a session its first reference to a document.
func (c *Cache) Get(id int32) (*Document, error) {
	doc, ok := c.byID[id]
	if !ok {
		return nil, ErrNotExist
	}
	return doc, nil
}

// Activate looks up an already-cached document by id and increments
// its opener count, the DOC_ACTIVATE counterpart to Open's by-name
// reuse branch. Every successful Activate must be paired with exactly
// one later Close, the same as Open. Unlike Get, Activate is the entry
// point a session uses the first time it activates a given document.
func (c *Cache) Activate(id int32) (*Document, error) {
	doc, ok := c.byID[id]
	if !ok {
		return nil, ErrNotExist
	}
	doc.openerCount++
	return doc, nil
}

// Close releases one opener's reference to id. When the opener count
// reaches zero the document is evicted from both indexes and its
// buffer is released.
func (c *Cache) Close(id int32) {
	doc, ok := c.byID[id]
	if !ok {
		return
	}
	doc.openerCount--
	if doc.openerCount <= 0 {
		delete(c.byID, doc.ID)
		delete(c.byName, doc.Name)
	}
}

// Save persists a cached document's current contents to disk.
func (c *Cache) Save(id int32) error {
	doc, err := c.Get(id)
	if err != nil {
		return err
	}
	return c.store.Save(doc.Name, doc.Contents)
}

// Create makes a new, empty backing file without caching it. Mirrors
// the spec's DOC_CREATE, which never populates the in-memory cache.
func (c *Cache) Create(name string) error {
	return c.store.Create(name)
}

// Delete removes a backing file. It does not affect any cached entry,
// matching the spec's note that cache entries are only evicted via
// opener-count exhaustion.
func (c *Cache) Delete(name string) error {
	return c.store.Delete(name)
}

// ListNames enumerates the document directory.
func (c *Cache) ListNames() ([]string, error) {
	return c.store.ListNames()
}

// OpenerCount exposes the current reference count for id, for tests and
// the admin TUI's document listing.
func (c *Cache) OpenerCount(id int32) int {
	doc, ok := c.byID[id]
	if !ok {
		return 0
	}
	return doc.openerCount
}

// Len reports how many documents are currently cached.
func (c *Cache) Len() int { return len(c.byID) }

// OpenDocument describes one cached document for display, pairing its
// name and id with its current opener count.
type OpenDocument struct {
	ID          int32
	Name        string
	OpenerCount int
}

// OpenDocuments lists every currently-cached document, sorted by name,
// for the admin TUI's document listing to set alongside the on-disk
// names from ListNames.
func (c *Cache) OpenDocuments() []OpenDocument {
	open := make([]OpenDocument, 0, len(c.byID))
	for _, doc := range c.byID {
		open = append(open, OpenDocument{ID: doc.ID, Name: doc.Name, OpenerCount: doc.openerCount})
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Name < open[j].Name })
	return open
}
