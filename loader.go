package textmate

import (
	"io/fs"
	"iter"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"

	"howett.net/plist"
)

// Loader indexes a set of grammar files by scope name and by file type,
// and implements GrammarRegistry so grammars loaded together can include
// each other via `scopeName` or `scopeName#name` (spec.md §6 "Grammar
// registry collaborator"), adapted from the teacher's loader.go to the
// RawGrammar/Grammar split this engine uses.
type Loader struct {
	filetypes map[string][]*RawGrammar
	scopes    map[string]*RawGrammar

	diagnostics Diagnostics
}

func loadRawGrammar(pathname string) (*RawGrammar, error) {
	content, err := os.ReadFile(pathname)
	if err != nil {
		return nil, err
	}
	var raw RawGrammar
	if strings.HasSuffix(pathname, ".json") {
		err = decodeJSON(content, &raw)
	} else {
		_, err = plist.Unmarshal(content, &raw)
	}
	if err != nil {
		return nil, err
	}
	return &raw, nil
}

// basenameWithoutGrammarExt strips directory and a trailing
// ".tmLanguage"/".tmLanguage.json"/".json"/".plist" extension, the way
// the teacher derived the expected "source.<name>" scope from a path.
func basenameWithoutGrammarExt(pathname string) string {
	base := filepath.Base(pathname)
	for _, ext := range []string{".tmLanguage.json", ".tmLanguage", ".json", ".plist"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

func cutPrefix(s, prefix string) (string, bool) {
	return strings.CutPrefix(s, prefix)
}

// NewLoader indexes every grammar file named by paths. A file that fails
// to load is skipped and diagnosed rather than aborting the whole load,
// matching the teacher's "log and continue" loop.
func NewLoader(paths iter.Seq[string], opts ...Option) (*Loader, bool) {
	probe := &Grammar{}
	for _, opt := range opts {
		opt(probe)
	}
	diagnostics := probe.diagnostics
	if diagnostics == nil {
		diagnostics = DiscardDiagnostics
	}

	l := &Loader{
		scopes:      make(map[string]*RawGrammar),
		filetypes:   make(map[string][]*RawGrammar),
		diagnostics: diagnostics,
	}

	for pathname := range paths {
		raw, err := loadRawGrammar(pathname)
		if err != nil {
			l.diagnostics.Warnf(0, "unable to load %s: %v", pathname, err)
			continue
		}
		l.scopes[raw.ScopeName] = raw
		for _, ft := range raw.FileTypes {
			ft = strings.TrimLeft(ft, ".")
			l.filetypes[ft] = append(l.filetypes[ft], raw)
		}
	}
	return l, len(l.scopes) > 0
}

// NewLoaderFromDir indexes every file directly inside dir (walk=false)
// or recursively beneath it (walk=true).
func NewLoaderFromDir(dir string, walk bool, opts ...Option) (*Loader, bool) {
	if walk {
		return NewLoader(func(yield func(string) bool) {
			filepath.WalkDir(dir, func(pathname string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() {
					if !yield(pathname) {
						return filepath.SkipAll
					}
				}
				return nil
			})
		}, opts...)
	}
	return NewLoader(func(yield func(string) bool) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				if !yield(path.Join(dir, entry.Name())) {
					return
				}
			}
		}
	}, opts...)
}

// GetExternalGrammar implements GrammarRegistry.
func (l *Loader) GetExternalGrammar(scopeName string) *RawGrammar {
	return l.scopes[scopeName]
}

// FromScope compiles the grammar registered under scope, wiring l itself
// in as the GrammarRegistry so it can resolve includes into any other
// grammar this Loader indexed.
func (l *Loader) FromScope(scope string, opts ...Option) (*Grammar, error) {
	raw, ok := l.scopes[scope]
	if !ok {
		return nil, os.ErrNotExist
	}
	return l.compile(raw, opts...), nil
}

// FromFileType compiles the index'th grammar registered for file type ft
// (extension without the leading dot).
func (l *Loader) FromFileType(ft string, index int, opts ...Option) (*Grammar, error) {
	raws, ok := l.filetypes[ft]
	if !ok || index >= len(raws) {
		return nil, os.ErrNotExist
	}
	return l.compile(raws[index], opts...), nil
}

func (l *Loader) compile(raw *RawGrammar, opts ...Option) *Grammar {
	allOpts := append([]Option{WithGrammarRegistry(l), WithDiagnostics(l.diagnostics)}, opts...)
	return NewGrammar(raw, allOpts...)
}

func (l *Loader) Scopes() iter.Seq[string] {
	return maps.Keys(l.scopes)
}

func (l *Loader) FileTypes() iter.Seq[string] {
	return maps.Keys(l.filetypes)
}

func (l *Loader) FileTypeNames() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for ft, raws := range l.filetypes {
			var names []string
			for _, raw := range raws {
				names = append(names, raw.ScopeName)
			}
			if !yield(ft, names) {
				return
			}
		}
	}
}
