// Package config loads the engine's root-level configuration document and
// the workspace/alias metadata the Module Resolver and Dependency Graph
// need. The KDL document groups settings by concern
// (Project/Index/Performance/Search/FeatureFlags); nodes are walked
// manually rather than unmarshaled through struct tags so unknown nodes
// pass through without error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// Config is the root configuration document, loaded from
// "<root>/.codelens.kdl".
type Config struct {
	Project      Project
	Index        Index
	Performance  Performance
	Search       Search
	FeatureFlags FeatureFlags
	Include      []string
	Exclude      []string
}

type Project struct {
	Root string
	Name string
}

type Index struct {
	MaxFileSizeBytes int64
	RespectGitignore bool
	WatchMode        bool
	WatchDebounceMs  int
}

type Performance struct {
	MaxCandidates    int
	MaxFilesRead     int
	MaxBytesRead     int64
	MaxParseTimeMs   int
	MaxDiffBytes     int
	MaxMatchAttempts int
	DebounceMs       int
}

type Search struct {
	MaxCandidatesPerQuery int
	SnippetLength         int
	MatchesPerFile        int
}

type FeatureFlags struct {
	EnableBundlerResolution bool
	EnableWatcher           bool
}

// Default returns the configuration used when no .codelens.kdl document
// is present.
func Default(root string) *Config {
	return &Config{
		Project: Project{Root: root, Name: filepath.Base(root)},
		Index: Index{
			MaxFileSizeBytes: 2 << 20, // 2MB
			RespectGitignore: true,
			WatchMode:        true,
			WatchDebounceMs:  500,
		},
		Performance: Performance{
			MaxCandidates:    2000,
			MaxFilesRead:     500,
			MaxBytesRead:     64 << 20,
			MaxParseTimeMs:   5000,
			MaxDiffBytes:     1 << 20,
			MaxMatchAttempts: 100000,
			DebounceMs:       500,
		},
		Search: Search{
			MaxCandidatesPerQuery: 200,
			SnippetLength:         160,
			MatchesPerFile:        5,
		},
		FeatureFlags: FeatureFlags{
			EnableBundlerResolution: false,
			EnableWatcher:           true,
		},
	}
}

// Load reads "<root>/.codelens.kdl" if present, overlaying it onto
// Default(root). A missing file is not an error — the default
// configuration is returned unchanged. Only the project, index, include
// and exclude nodes are read; Performance, Search and FeatureFlags always
// keep their Default values.
func Load(root string) (*Config, error) {
	cfg := Default(root)

	path := filepath.Join(root, ".codelens.kdl")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	doc, err := kdl.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_file_size_bytes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSizeBytes = int64(v)
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "watch_mode":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.WatchMode = b
					}
				case "watch_debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.WatchDebounceMs = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, stringArgs(n)...)
		case "exclude":
			cfg.Exclude = append(cfg.Exclude, stringArgs(n)...)
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) != target {
		return
	}
	if len(n.Arguments) == 0 {
		return
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		set(s)
	}
}

func stringArgs(n *document.Node) []string {
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
