package libpython

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/reglet-dev/pybridge/domain/entities"
)

// librarySuffix returns the shared library extension for goos.
func librarySuffix(goos string) string {
	switch goos {
	case "windows":
		return "dll"
	case "darwin":
		return "dylib"
	default:
		return "so"
	}
}

// Candidates returns the libpython paths to try for cfg on goos, in order and
// without duplicates. Existence is not checked.
func Candidates(cfg entities.PythonConfig, goos string) []string {
	var names []string
	for _, key := range []string{"INSTSONAME", "LDLIBRARY"} {
		if v, ok := cfg.Get(key); ok {
			names = append(names, v, filepath.Base(v))
		}
	}
	if v, ok := cfg.Get("LIBRARY"); ok {
		base := filepath.Base(v)
		names = append(names, strings.TrimSuffix(base, filepath.Ext(base)))
	}
	prefix := "lib"
	if goos == "windows" {
		prefix = ""
	}
	if v, ok := cfg.Get("VERSION"); ok {
		names = append(names, prefix+"python"+v)
	}
	names = append(names, prefix+"python")
	names = uniq(names)

	var dirs []string
	if v, ok := cfg.Get("LIBDIR"); ok {
		dirs = append(dirs, v)
	}
	if exe, ok := cfg.Get("executable"); ok {
		if goos == "windows" {
			dirs = append(dirs, filepath.Dir(exe))
		} else {
			dirs = append(dirs, filepath.Join(exe, "..", "..", "lib"))
		}
	}
	if goos == "darwin" {
		if v, ok := cfg.Get("PYTHONFRAMEWORKPREFIX"); ok {
			dirs = append(dirs, v)
		}
	}
	if v, ok := cfg.Get("exec_prefix"); ok {
		dirs = append(dirs, v, filepath.Join(v, "lib"))
	}
	dirs = uniq(dirs)

	multiarch := cfg.Multiarch()
	suffix := "." + librarySuffix(goos)

	var paths []string
	for _, name := range names {
		for _, dir := range dirs {
			bases := []string{filepath.Join(dir, name)}
			if multiarch != "" {
				bases = append(bases, filepath.Join(dir, multiarch, name))
			}
			for _, base := range bases {
				paths = append(paths, base)
				if !strings.HasSuffix(base, suffix) {
					paths = append(paths, base+suffix)
				}
			}
		}
	}
	return uniq(paths)
}

// existing keeps the paths that are regular files (after following links).
func existing(fs billy.Basic, paths []string) []string {
	var out []string
	for _, p := range paths {
		if isFile(fs, p) {
			out = append(out, p)
		}
	}
	return out
}

func isFile(fs billy.Basic, path string) bool {
	info, err := fs.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
