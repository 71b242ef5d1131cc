package topology

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML topology from any location afs can download from.
func Load(ctx context.Context, URL string) (*Topology, error) {
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download topology %v: %w", URL, err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology %v: %w", URL, err)
	}

	return t, nil
}

func Parse(data []byte) (*Topology, error) {
	t := &Topology{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, err
	}

	return New(t)
}
