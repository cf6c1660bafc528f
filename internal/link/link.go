package link

import (
	"path/filepath"
	"strings"
	"sync/atomic"
)

// FileSuffix is the extension of link description files.
const FileSuffix = ".desktop"

// Kind describes what a link points at.
type Kind int

const (
	KindApplication Kind = iota
	KindURL
	KindDirectory
)

// EnvMask is a bitflag of desktop environments considered active.
// A link may restrict itself to, or exclude itself from, a set of
// environments via OnlyShowIn / NotShowIn.
type EnvMask uint

const (
	EnvGNOME EnvMask = 1 << iota
	EnvKDE
	EnvXFCE
	EnvLXDE
	EnvMATE
	EnvCinnamon
	EnvUnity
	EnvROX
	EnvOpenbox
)

var envNames = map[string]EnvMask{
	"GNOME":    EnvGNOME,
	"KDE":      EnvKDE,
	"XFCE":     EnvXFCE,
	"LXDE":     EnvLXDE,
	"MATE":     EnvMATE,
	"Cinnamon": EnvCinnamon,
	"Unity":    EnvUnity,
	"ROX":      EnvROX,
	"Openbox":  EnvOpenbox,
}

// EnvFromName maps an environment name as it appears in description
// files ("GNOME", "KDE", ...) to its flag. Unknown names map to 0.
func EnvFromName(name string) EnvMask {
	return envNames[name]
}

// EnvFromList maps a semicolon-separated environment list to a mask.
func EnvFromList(list string) EnvMask {
	var mask EnvMask
	for _, name := range strings.Split(list, ";") {
		mask |= EnvFromName(strings.TrimSpace(name))
	}
	return mask
}

// Link is one parsed link description file. Links are shared between
// the link base's primary index and its category index; the reference
// count tracks logical ownership so teardown can verify every owner
// released exactly once. Only the primary index holds counted
// references.
type Link struct {
	ref int32

	id          string
	sourceFile  string
	kind        Kind
	name        string
	genericName string
	comment     string
	exec        string
	path        string
	url         string
	terminal    bool
	categories  []string

	noDisplay  bool
	hidden     bool
	onlyShowIn EnvMask
	notShowIn  EnvMask
}

// Ref adds a reference to the link.
func (l *Link) Ref() {
	atomic.AddInt32(&l.ref, 1)
}

// Unref drops a reference to the link.
func (l *Link) Unref() {
	atomic.AddInt32(&l.ref, -1)
}

// RefCount returns the current reference count.
func (l *Link) RefCount() int32 {
	return atomic.LoadInt32(&l.ref)
}

// ID returns the link's identity, set by the index that adopted it.
// Empty for a link that was parsed but never indexed.
func (l *Link) ID() string {
	return l.id
}

// SetID stamps the link with its identity. Called once by the index
// when the link is adopted.
func (l *Link) SetID(id string) {
	l.id = id
}

// SourceFile returns the path of the file the link was parsed from.
func (l *Link) SourceFile() string {
	return l.sourceFile
}

// Kind returns what the link points at.
func (l *Link) Kind() Kind {
	return l.kind
}

// Name returns the link's name, localized at parse time.
func (l *Link) Name() string {
	return l.name
}

// GenericName returns the localized generic name, e.g. "Web Browser".
func (l *Link) GenericName() string {
	return l.genericName
}

// Comment returns the localized comment.
func (l *Link) Comment() string {
	return l.comment
}

// Exec returns the command line for application links.
func (l *Link) Exec() string {
	return l.exec
}

// Path returns the working directory for application links, if any.
func (l *Link) Path() string {
	return l.path
}

// URL returns the target for URL links.
func (l *Link) URL() string {
	return l.url
}

// Terminal reports whether the application wants a terminal.
func (l *Link) Terminal() bool {
	return l.terminal
}

// Categories returns the category tags an application link declares.
// Only application links carry categories.
func (l *Link) Categories() []string {
	return l.categories
}

// Display reports whether the link wants to be shown in the given
// set of active environments. Links marked NoDisplay or Hidden never
// display; OnlyShowIn restricts to its environments, NotShowIn
// excludes from its environments.
func (l *Link) Display(env EnvMask) bool {
	if l.noDisplay || l.hidden {
		return false
	}
	if l.onlyShowIn != 0 {
		return l.onlyShowIn&env != 0
	}
	return l.notShowIn&env == 0
}

// IDFromFile derives a link's identity from the path of its
// description file relative to the base directory it was found under.
// Two files with the same relative path under different base
// directories denote the same link and compete by directory priority.
func IDFromFile(subPath string) string {
	id := strings.TrimSuffix(subPath, FileSuffix)
	return strings.ReplaceAll(id, string(filepath.Separator), "-")
}
