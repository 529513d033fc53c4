package policy

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Description is the display form of a loaded snapshot, rendered by
// `navbuddy policy show`.
type Description struct {
	AllowedRoots     []string `yaml:"allowed_roots"`
	ExcludedPatterns []string `yaml:"excluded_patterns,omitempty"`
	MaxDepth         int      `yaml:"max_depth"`
	FollowSymlinks   bool     `yaml:"follow_symlinks"`
	ConfirmOps       []string `yaml:"confirm_ops,omitempty"`
	ConfirmTimeout   string   `yaml:"confirm_timeout"`
	LoadedAt         string   `yaml:"loaded_at"`
}

func (p *Policy) Describe() Description {
	ops := make([]string, 0, len(p.confirmOps))
	for _, k := range p.ConfirmOps() {
		ops = append(ops, string(k))
	}
	return Description{
		AllowedRoots:     p.AllowedRoots(),
		ExcludedPatterns: p.ExcludedPatterns(),
		MaxDepth:         p.maxDepth,
		FollowSymlinks:   p.followSymlinks,
		ConfirmOps:       ops,
		ConfirmTimeout:   p.confirmTimeout.String(),
		LoadedAt:         p.loadedAt.Format(time.RFC3339),
	}
}

// DescribeYAML renders the snapshot as YAML.
func (p *Policy) DescribeYAML() (string, error) {
	b, err := yaml.Marshal(p.Describe())
	if err != nil {
		return "", err
	}
	return string(b), nil
}
