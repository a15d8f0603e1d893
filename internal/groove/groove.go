package groove

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("groove not found")

// Metadata describes a schedulable agent task. Consumers treat it read-only.
type Metadata struct {
	Name             string `yaml:"name"`
	Schedule         string `yaml:"schedule,omitempty"`
	CatchUpOnStartup bool   `yaml:"catchUpOnStartup,omitempty"`
	MaxCatchUpAge    int    `yaml:"maxCatchUpAge,omitempty"` // seconds
	MaxIterations    int    `yaml:"maxIterations,omitempty"`
	AutoApprove      *bool  `yaml:"autoApprove,omitempty"`
	Agent            string `yaml:"agent,omitempty"`
}

// Provider resolves groove metadata and prompt content by name.
type Provider interface {
	Get(name string) (Metadata, error)
	Load(name string) (Metadata, string, error)
}

// DirProvider reads grooves from <Dir>/<name>.md: YAML frontmatter between
// --- fences, markdown body as the prompt.
type DirProvider struct {
	Dir string
}

func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{Dir: strings.TrimSpace(dir)}
}

func (p *DirProvider) Get(name string) (Metadata, error) {
	meta, _, err := p.Load(name)
	return meta, err
}

func (p *DirProvider) Load(name string) (Metadata, string, error) {
	want := strings.TrimSpace(name)
	if want == "" {
		return Metadata{}, "", errors.New("groove name is required")
	}
	path := filepath.Join(p.Dir, want+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, "", fmt.Errorf("%w: %s", ErrNotFound, want)
		}
		return Metadata{}, "", err
	}
	meta, prompt, err := Parse(string(data))
	if err != nil {
		return Metadata{}, "", fmt.Errorf("parse groove %s: %w", want, err)
	}
	if strings.TrimSpace(meta.Name) == "" {
		meta.Name = want
	}
	return meta, prompt, nil
}

// List loads every groove definition in the directory. Files that fail to
// parse are skipped.
func (p *DirProvider) List() ([]Metadata, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".md")
		meta, err := p.Get(name)
		if err != nil {
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

// Parse splits a groove document into frontmatter metadata and prompt body.
// A document without a frontmatter fence is all prompt.
func Parse(content string) (Metadata, string, error) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return Metadata{}, strings.TrimSpace(content), nil
	}
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return Metadata{}, "", errors.New("unterminated frontmatter")
	}
	var meta Metadata
	front := strings.Join(lines[1:end], "\n")
	if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
		return Metadata{}, "", err
	}
	prompt := strings.TrimSpace(strings.Join(lines[end+1:], "\n"))
	return meta, prompt, nil
}
