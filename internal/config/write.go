package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the process
// environment without overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %q: %w", p, err)
		}
	}
	return nil
}

// WriteValue sets the dotted key in the YAML file at path to value, keeping
// every other key and comment. Missing files and intermediate mappings are created.
//
// Precondition: key must be a non-empty dotted path such as "encryption.enabled".
// Postcondition: The file parses back with key equal to value, or an error is returned.
func WriteValue(path, key string, value any) error {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid config key %q", key)
		}
	}

	var doc yaml.Node
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config file: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("config file %q: top level is not a mapping", path)
	}

	var leaf yaml.Node
	if err := leaf.Encode(value); err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	node := root
	for i, p := range parts {
		child := lookup(node, p)
		last := i == len(parts)-1
		if child == nil {
			child = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			if last {
				child = &leaf
			}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p}, child)
		} else if last {
			leaf.HeadComment, leaf.LineComment, leaf.FootComment = child.HeadComment, child.LineComment, child.FootComment
			*child = leaf
		}
		if !last && child.Kind != yaml.MappingNode {
			return fmt.Errorf("config key %q: %q is not a mapping", key, p)
		}
		node = child
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encoding config file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config file: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// EnsureEncryptionKey fills in a missing master password when encryption is
// enabled. The generated passphrase is written to the config file at path.
//
// Postcondition: Returns true when a passphrase was generated; cfg then carries it.
func EnsureEncryptionKey(path string, cfg *Config, generate func() (string, error)) (bool, error) {
	if !cfg.Encryption.Enabled || cfg.Encryption.MasterPassword != "" {
		return false, nil
	}
	key, err := generate()
	if err != nil {
		return false, err
	}
	if err := WriteValue(path, "encryption.master_password", key); err != nil {
		return false, fmt.Errorf("saving generated encryption key: %w", err)
	}
	cfg.Encryption.MasterPassword = key
	return true, nil
}
