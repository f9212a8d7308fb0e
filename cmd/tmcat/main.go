// Command tmcat tokenizes a file against a TextMate grammar and renders
// it with a theme's ANSI colors, or dumps the compiled rule graph for
// inspection.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/alecthomas/repr"
	"gopkg.in/alecthomas/kingpin.v2"

	textmate "github.com/go-textmate/grammar"
	"github.com/go-textmate/grammar/theme"
)

const (
	grammarDir = "share/tmcat/grammars"
	themeDir   = "share/tmcat/themes"
)

var (
	syntaxFlag      = kingpin.Flag("syntax", "grammar file type to use").Short('s').String()
	themeFlag       = kingpin.Flag("theme", "theme name to render with").Short('t').Default("default").String()
	transparentFlag = kingpin.Flag("transparent", "don't fall back to the theme's default foreground/background").Bool()
	listFlag        = kingpin.Flag("list", "list known file types and exit").Bool()
	dumpRulesFlag   = kingpin.Flag("dump-rules", "compile the grammar and print its rule graph instead of rendering").Bool()
	sourceArg       = kingpin.Arg("file", "source file to tokenize (stdin if omitted)").String()
)

func main() {
	kingpin.Parse()

	loader, _ := textmate.NewLoader(grammarPaths())

	if *listFlag {
		printFileTypes(loader)
		return
	}

	sourceFile, grammarName, err := openSource(*sourceArg, *syntaxFlag)
	kingpin.FatalIfError(err, "")
	defer sourceFile.Close()

	g, err := loader.FromFileType(grammarName, 0)
	kingpin.FatalIfError(err, fmt.Sprintf("failed to load grammar %q", grammarName))

	if *dumpRulesFlag {
		g.RuleCount() // force compilation
		repr.Println(g)
		return
	}

	t, err := loadTheme(*themeFlag)
	kingpin.FatalIfError(err, "failed to load theme")

	sourceBytes, err := readAll(sourceFile)
	kingpin.FatalIfError(err, "failed to read source file")
	source := string(sourceBytes)

	render(os.Stdout, g, t, source, *transparentFlag)
}

// render tokenizes source line by line, threading the stack across
// calls, and writes it to w with ANSI SGR escapes for each token's
// resolved theme color.
func render(w io.Writer, g *textmate.Grammar, t *theme.Theme, source string, transparent bool) {
	var stack textmate.Stack
	writer := bufio.NewWriter(w)
	defer writer.Flush()

	lines := strings.SplitAfter(source, "\n")
	for _, line := range lines {
		text := strings.TrimSuffix(line, "\n")
		result := g.TokenizeLine(text, stack)
		stack = result.Stack

		mapped := t.MapTokens(result.Tokens)
		for _, tok := range mapped {
			writeSGR(writer, t, tok, transparent)
			writer.WriteString(text[tok.Start:tok.End])
		}
		writer.WriteString("\033[0m")
		if strings.HasSuffix(line, "\n") {
			writer.WriteByte('\n')
		}
	}
}

func writeSGR(w *bufio.Writer, t *theme.Theme, tok theme.ColorMapping, transparent bool) {
	fg, bg := tok.Foreground, tok.Background
	if !transparent {
		if fg == nil {
			fg = t.Foreground
		}
		if bg == nil {
			bg = t.Background
		}
	}

	var csi bytes.Buffer
	csi.WriteString("\033[0")
	if tok.FontStyle.Has(theme.Bold) {
		csi.WriteString(";1")
	}
	if tok.FontStyle.Has(theme.Italic) {
		csi.WriteString(";3")
	}
	if tok.FontStyle.Has(theme.Underline) {
		csi.WriteString(";4")
	}
	if tok.FontStyle.Has(theme.Strikethrough) {
		csi.WriteString(";9")
	}
	if fg != nil {
		r, g, b, _ := fg.RGBA()
		fmt.Fprintf(&csi, ";38;2;%d;%d;%d", r>>8, g>>8, b>>8)
	}
	if bg != nil {
		r, g, b, _ := bg.RGBA()
		fmt.Fprintf(&csi, ";48;2;%d;%d;%d", r>>8, g>>8, b>>8)
	}
	csi.WriteByte('m')
	w.Write(csi.Bytes())
}

func grammarPaths() func(yield func(string) bool) {
	return func(yield func(string) bool) {
		for _, dir := range searchDirs(grammarDir) {
			entries, _ := os.ReadDir(dir)
			for _, entry := range entries {
				if !entry.IsDir() && !yield(path.Join(dir, entry.Name())) {
					return
				}
			}
		}
	}
}

func searchDirs(sub string) []string {
	dirs := []string{filepath.Join("/usr", sub)}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", sub))
	}
	return dirs
}

func printFileTypes(loader *textmate.Loader) {
	fmt.Println("File Types:")
	fts := slices.Collect(loader.FileTypes())
	names := maps.Collect(loader.FileTypeNames())
	slices.Sort(fts)
	for _, ft := range fts {
		fmt.Printf("- %s: %s\n", ft, strings.Join(names[ft], ", "))
	}
}

func openSource(name, syntax string) (*os.File, string, error) {
	if name == "" {
		return os.Stdin, syntax, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load file %q: %w", name, err)
	}
	if syntax == "" {
		syntax = strings.TrimPrefix(path.Ext(name), ".")
	}
	return f, syntax, nil
}

func loadTheme(name string) (*theme.Theme, error) {
	var lastErr error
	for _, dir := range searchDirs(themeDir) {
		themePath := filepath.Join(dir, name+".json")
		content, err := os.ReadFile(themePath)
		if err != nil {
			lastErr = err
			continue
		}
		var raw theme.ThemeJSON
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, err
		}
		return theme.ParseTheme(raw), nil
	}
	return nil, lastErr
}

func readAll(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	_, err := buf.ReadFrom(f)
	return buf.Bytes(), err
}
