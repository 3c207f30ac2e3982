package main

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// namesConfig is a friendly-name cache, keyed on the device's 8-hex-digit
// id, e.g. "01020304" -> "Hot Water". It is loaded once at startup and
// written back on exit, preserving any comments already present in the
// file via yaml.Node.
type namesConfig struct {
	mu    sync.RWMutex
	names map[string]string // deviceHex -> name
	yaml  yaml.Node          // decoded YAML, inc. comments
}

func (c *namesConfig) load(fn string) error {
	data, err := os.ReadFile(fn)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := yaml.Unmarshal(data, &c.yaml); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, &c.names); err != nil {
		return err
	}
	return nil
}

func (c *namesConfig) write(fn string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	newNames := maps.Clone(c.names)

	var mapping *yaml.Node
	if len(c.yaml.Content) == 0 {
		mapping = &yaml.Node{Kind: yaml.MappingNode}
		c.yaml.Content = append(c.yaml.Content, mapping)
	} else {
		mapping = c.yaml.Content[0]
	}

	for i := 0; i < len(mapping.Content); i += 2 {
		delete(newNames, mapping.Content[i].Value)
	}

	if len(newNames) == 0 {
		return nil
	}

	for k, v := range newNames {
		yk := &yaml.Node{Kind: yaml.ScalarNode, Value: k, Tag: "!!str", Style: yaml.DoubleQuotedStyle}
		yv := &yaml.Node{Kind: yaml.ScalarNode, Value: v, Tag: "!!str", Style: yaml.DoubleQuotedStyle}
		mapping.Content = append(mapping.Content, yk, yv)
	}

	f, err := os.CreateTemp(filepath.Dir(fn), strings.Join([]string{".", filepath.Base(fn), "*"}, ""))
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	defer enc.Close()

	if err := enc.Encode(&c.yaml); err != nil {
		return err
	}
	f.Close()

	return os.Rename(f.Name(), fn)
}

// nameFor returns the configured name for a device hex id, or "" if unknown.
// It is safe for concurrent use and is passed to bridge.Config as a
// NameResolver.
func (c *namesConfig) nameFor(deviceID uint32) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.names[fmt.Sprintf("%08x", deviceID)]
}

// seen records that deviceID has been observed on the wire, stubbing an
// empty entry into the cache (for the operator to fill in later) the first
// time a given device is encountered. Mirrors the teacher's config.seen.
func (c *namesConfig) seen(deviceID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("%08x", deviceID)
	if c.names == nil {
		c.names = make(map[string]string)
	}
	if _, found := c.names[key]; !found {
		c.names[key] = ""
	}
}
