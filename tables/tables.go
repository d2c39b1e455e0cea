// Package tables finds and caches the variable and expansion tables that
// bulletins refer to.
//
// Tables are identified by a string built from the bulletin header (see
// BufrID and CrexID) and read from YAML files named <id>.yaml in a table
// directory:
//
//	variables:
//	  - {code: B12101, desc: TEMPERATURE/AIR TEMPERATURE, unit: K, scale: 2, ref: 0, bits: 16}
//	sequences:
//	  D01001: [B01001, B01002]
//
// Loaded tables are kept for the lifetime of the process and shared between
// bulletins.
package tables

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
	"sigs.k8s.io/yaml"

	"github.com/sdifrance/gobufr/dtable"
	"github.com/sdifrance/gobufr/varcode"
	"github.com/sdifrance/gobufr/vartable"
)

// EnvDir is the environment variable naming the table directory.
const EnvDir = "BUFR_TABLES"

// DefaultTableDir is used when EnvDir is not set.
const DefaultTableDir = "/usr/share/gobufr/tables"

// Loader resolves a table id to its tables.
type Loader interface {
	Load(id string) (*vartable.Table, *dtable.Table, error)
}

// BufrID returns the id of the tables for a BUFR message.
func BufrID(centre, subcentre, masterTable, localTable int) string {
	return fmt.Sprintf("bufr-%d-%d-%d-%d", centre, subcentre, masterTable, localTable)
}

// CrexID returns the id of the tables for a CREX message.
func CrexID(masterTable, tableVersion int) string {
	return fmt.Sprintf("crex-%d-%d", masterTable, tableVersion)
}

// wmoFallback returns the id of the international tables matching a BUFR id
// with local tables, or "" when id has no such fallback.
func wmoFallback(id string) string {
	var centre, subcentre, master, local int
	if n, _ := fmt.Sscanf(id, "bufr-%d-%d-%d-%d", &centre, &subcentre, &master, &local); n != 4 {
		return ""
	}
	fb := BufrID(0, 0, master, 0)
	if fb == id {
		return ""
	}
	return fb
}

// DefaultDir returns the table directory configured in the environment.
func DefaultDir() string {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir
	}
	return DefaultTableDir
}

type entry struct {
	vt *vartable.Table
	dt *dtable.Table
}

// Registry is a read-through cache of tables keyed by id. It is safe for
// concurrent use.
type Registry struct {
	dir string

	mu    sync.Mutex
	cache map[string]entry
}

// NewRegistry returns a registry reading table files from dir. An empty dir
// disables reading files: only registered tables are found.
func NewRegistry(dir string) *Registry {
	return &Registry{dir: dir, cache: make(map[string]entry)}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, reading from DefaultDir.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(DefaultDir())
	})
	return defaultRegistry
}

// Register adds tables under id, replacing any previous ones.
func (r *Registry) Register(id string, vt *vartable.Table, dt *dtable.Table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[id] = entry{vt, dt}
}

// IDs returns the ids of the tables loaded so far, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.cache))
	for id := range r.cache {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Load returns the tables for id, reading them from the table directory the
// first time. BUFR ids referring to local tables fall back to the
// international tables of the same master version.
func (r *Registry) Load(id string) (*vartable.Table, *dtable.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.loadLocked(id)
	if err == nil {
		return e.vt, e.dt, nil
	}
	fb := wmoFallback(id)
	if fb == "" {
		return nil, nil, err
	}
	e, fbErr := r.loadLocked(fb)
	if fbErr != nil {
		return nil, nil, err
	}
	glog.Warningf("tables %s not found, using %s", id, fb)
	r.cache[id] = e
	return e.vt, e.dt, nil
}

func (r *Registry) loadLocked(id string) (entry, error) {
	if e, ok := r.cache[id]; ok {
		return e, nil
	}
	if r.dir == "" {
		return entry{}, errors.Errorf("tables %s not registered", id)
	}
	vt, dt, err := LoadFile(id, filepath.Join(r.dir, id+".yaml"))
	if err != nil {
		return entry{}, err
	}
	e := entry{vt, dt}
	r.cache[id] = e
	glog.V(1).Infof("loaded tables %s: %d variables, %d sequences", id, vt.Len(), dt.Len())
	return e, nil
}

// File is the YAML layout of a table file.
type File struct {
	Variables []vartable.Entry          `json:"variables"`
	Sequences map[string][]varcode.Code `json:"sequences"`
}

// LoadFile reads a table file.
func LoadFile(id, path string) (*vartable.Table, *dtable.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading tables %s", id)
	}
	return Parse(id, data)
}

// Parse decodes the YAML content of a table file.
func Parse(id string, data []byte) (*vartable.Table, *dtable.Table, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, nil, errors.Wrapf(err, "parsing tables %s", id)
	}
	vt, err := vartable.New(id, f.Variables)
	if err != nil {
		return nil, nil, err
	}
	seqs := make(map[varcode.Code][]varcode.Code, len(f.Sequences))
	for name, codes := range f.Sequences {
		code, err := varcode.Parse(name)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "tables %s", id)
		}
		seqs[code] = codes
	}
	dt, err := dtable.New(id, seqs)
	if err != nil {
		return nil, nil, err
	}
	return vt, dt, nil
}
