package linkbase

import (
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/0xADE/ade-linkd/internal/link"
	"github.com/0xADE/ade-linkd/internal/locale"
	"github.com/0xADE/ade-linkd/internal/watch"
)

// UpdateKind tells an update callback what happened to a link.
type UpdateKind int

const (
	UpdateAdded UpdateKind = iota
	UpdateRemoved
)

// UpdateFunc is invoked for every link entering or leaving the base.
type UpdateFunc func(kind UpdateKind, l *link.Link)

// PathsProvider supplies the ordered list of base directories to index,
// highest precedence first. The list is read once per registration
// pass, not observed live.
type PathsProvider interface {
	DataDirs() []string
}

// entry pairs a link with the priority of the directory it came from.
// Links found in earlier search directories get lower priority values
// and therefore higher precedence. The entry owns one reference to its
// link.
type entry struct {
	priority int
	link     *link.Link
}

// LinkBase is a live index of the link description files found across
// an ordered set of search directories. It populates itself when
// created and tracks filesystem changes from then on; it never
// re-scans.
type LinkBase struct {
	ref int32

	// environments is a bitflag of the active desktop environments,
	// used to decide which links want to be indexed at all.
	environments link.EnvMask
	loc          locale.Locale

	paths PathsProvider
	watch *watch.Watch

	// mu guards everything below. Mutation only happens while
	// handling one notification at a time, but queries may come from
	// any goroutine.
	mu sync.RWMutex

	// base maps a link identity to its entries sorted by priority in
	// increasing order. A list is never stored empty: deleting the
	// last entry deletes the identity.
	base map[string][]*entry

	// pathPriority maps each watched directory to its priority,
	// assigned once at registration in search order and never reused.
	pathPriority map[string]int
	nextPriority int

	// categories maps a category tag to the application links that
	// declare it. The links are not reffed here since they are always
	// held in base as well; this index only ever looks them up.
	categories map[string][]*link.Link

	updateFunc UpdateFunc
}

// New creates a LinkBase over the provider's current directory list,
// localizing link files against localeSpec and filtering display
// eligibility against environments. Files already present in the
// watched directories are indexed synchronously before New returns.
func New(paths PathsProvider, localeSpec string, environments link.EnvMask) (*LinkBase, error) {
	w, err := watch.New()
	if err != nil {
		return nil, err
	}

	lb := &LinkBase{
		ref:          1,
		environments: environments,
		loc:          locale.Parse(localeSpec),
		paths:        paths,
		watch:        w,
		base:         make(map[string][]*entry),
		pathPriority: make(map[string]int),
		categories:   make(map[string][]*link.Link),
	}
	lb.registerPaths()
	return lb, nil
}

// registerPaths walks the provider's directory list and watches the
// applications directory under each one, assigning increasing priority
// numbers in search order. The priority must be recorded before the
// watch is installed: installing the watch immediately reports the
// directory's existing files, and handling those reports needs the
// priority.
func (lb *LinkBase) registerPaths() {
	for _, dir := range lb.paths.DataDirs() {
		base := filepath.Join(dir, "applications")

		lb.mu.Lock()
		if _, ok := lb.pathPriority[base]; ok {
			lb.mu.Unlock()
			continue
		}
		lb.pathPriority[base] = lb.nextPriority
		lb.nextPriority++
		lb.mu.Unlock()

		if err := lb.watch.Add(base, false, lb.update); err != nil {
			log.Printf("[ERROR] linkbase: cannot watch %s: %v", base, err)
		}
	}
}

// update handles one filesystem notification. The watch delivers
// notifications strictly one at a time, so update never runs
// concurrently with itself.
func (lb *LinkBase) update(n watch.Notify) {
	if !strings.HasSuffix(n.SubPath, link.FileSuffix) {
		return // ignore other files
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	id := link.IDFromFile(n.SubPath)
	list := lb.base[id]

	add := false

	switch n.Kind {
	case watch.SelfRemoved:
		// The watched directory itself vanished. Entries indexed from
		// it stay in place; known limitation inherited from the
		// original design.
		return
	case watch.Removed:
		lb.removeEntry(id, list, n.FullPath)
	case watch.Modified:
		// An entry may not exist if the file was skipped during the
		// add because it failed to parse or did not want to be
		// displayed.
		list = lb.removeEntry(id, list, n.FullPath)
		add = true
	case watch.Added:
		priority := lb.priorityFor(n.BasePath)
		if at := findPriority(list, priority); at < len(list) && list[at].priority == priority {
			// Already indexed from this directory: duplicate add
			// notifications are rejected, never reordered.
			return
		}
		add = true
	}

	if add {
		lb.addEntry(id, list, lb.priorityFor(n.BasePath), n.FullPath)
	}
}

// priorityFor resolves a watched directory's priority. Every watch is
// installed only after its directory is registered, so the lookup
// cannot miss.
func (lb *LinkBase) priorityFor(basePath string) int {
	priority, ok := lb.pathPriority[basePath]
	if !ok {
		panic("linkbase: notification for unregistered path " + basePath)
	}
	return priority
}

// removeEntry drops the entry parsed from fullPath out of the
// identity's list, if one exists, notifying the update callback and
// the category index first. It stores the shortened list back (or
// deletes the identity when the list empties) and returns it.
func (lb *LinkBase) removeEntry(id string, list []*entry, fullPath string) []*entry {
	at := findPath(list, fullPath)
	if at == len(list) {
		return list
	}
	e := list[at]

	if lb.updateFunc != nil {
		lb.updateFunc(UpdateRemoved, e.link)
	}
	if e.link.Kind() == link.KindApplication {
		for _, cat := range e.link.Categories() {
			lb.categoryRemove(cat, e.link)
		}
	}

	list = append(list[:at], list[at+1:]...)
	e.link.Unref()

	if len(list) == 0 {
		delete(lb.base, id)
	} else {
		lb.base[id] = list
	}
	return list
}

// addEntry parses fullPath and inserts the result into the identity's
// list, keeping it sorted by priority. Files that fail parsing or opt
// out of display for the active environments are skipped silently;
// that is expected and must not disturb other entries.
func (lb *LinkBase) addEntry(id string, list []*entry, priority int, fullPath string) {
	l, err := link.NewFromFile(fullPath, lb.loc)
	if err != nil {
		return
	}
	if !l.Display(lb.environments) {
		l.Unref()
		return
	}
	l.SetID(id)

	if lb.updateFunc != nil {
		lb.updateFunc(UpdateAdded, l)
	}

	at := findPriority(list, priority)
	list = append(list, nil)
	copy(list[at+1:], list[at:])
	list[at] = &entry{priority: priority, link: l}
	lb.base[id] = list

	if l.Kind() == link.KindApplication {
		for _, cat := range l.Categories() {
			lb.categoryAdd(cat, l)
		}
	}
}

// findPath returns the position of the entry parsed from fullPath, or
// len(list) if there is none.
func findPath(list []*entry, fullPath string) int {
	for i, e := range list {
		if e.link.SourceFile() == fullPath {
			return i
		}
	}
	return len(list)
}

// findPriority returns the position of the first entry with a priority
// number >= priority, or len(list).
func findPriority(list []*entry, priority int) int {
	for i, e := range list {
		if e.priority >= priority {
			return i
		}
	}
	return len(list)
}

func (lb *LinkBase) categoryAdd(cat string, l *link.Link) {
	lb.categories[cat] = append(lb.categories[cat], l)
}

func (lb *LinkBase) categoryRemove(cat string, l *link.Link) {
	links := lb.categories[cat]
	for i, c := range links {
		if c == l {
			links = append(links[:i], links[i+1:]...)
			break
		}
	}
	if len(links) == 0 {
		delete(lb.categories, cat)
	} else {
		lb.categories[cat] = links
	}
}

// SetUpdateFunc replaces the update callback. The last writer wins;
// there is only one callback slot. The callback runs while the base
// is locked and must not call back into it.
func (lb *LinkBase) SetUpdateFunc(fn UpdateFunc) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.updateFunc = fn
}

// Category returns the application links declaring the given category
// tag, or nil if the tag is unknown. It never parses or touches the
// filesystem.
func (lb *LinkBase) Category(tag string) []*link.Link {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	links := lb.categories[tag]
	if links == nil {
		return nil
	}
	return append([]*link.Link(nil), links...)
}

// Lookup returns the highest-precedence link for an identity, or nil.
func (lb *LinkBase) Lookup(id string) *link.Link {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	list := lb.base[id]
	if len(list) == 0 {
		return nil
	}
	return list[0].link
}

// Identities returns every indexed identity in sorted order.
func (lb *LinkBase) Identities() []string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	ids := make([]string, 0, len(lb.base))
	for id := range lb.base {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Categories returns every known category tag in sorted order.
func (lb *LinkBase) Categories() []string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	tags := make([]string, 0, len(lb.categories))
	for tag := range lb.categories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Len returns the number of indexed identities.
func (lb *LinkBase) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.base)
}

// Ref adds a reference to the link base.
func (lb *LinkBase) Ref() {
	atomic.AddInt32(&lb.ref, 1)
}

// RefCount returns the current reference count.
func (lb *LinkBase) RefCount() int32 {
	return atomic.LoadInt32(&lb.ref)
}

// Unref drops a reference. When the last reference goes, the watch is
// closed and every entry releases its link exactly once. The category
// index holds no references, so it is discarded untouched.
func (lb *LinkBase) Unref() {
	if atomic.AddInt32(&lb.ref, -1) > 0 {
		return
	}

	lb.watch.Close()

	lb.mu.Lock()
	defer lb.mu.Unlock()
	for _, list := range lb.base {
		for _, e := range list {
			e.link.Unref()
		}
	}
	lb.base = nil
	lb.categories = nil
	lb.pathPriority = nil
}
