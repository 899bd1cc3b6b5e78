package capture

import (
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

// Manifest 描述一次已完成的抓包，随 trace 文件写在旁边。
type Manifest struct {
	Interface  string    `yaml:"interface"`
	Path       string    `yaml:"path"`
	PacketType string    `yaml:"packet_type"`
	Packets    uint32    `yaml:"packets"`
	Bytes      uint64    `yaml:"bytes"`
	StartedAt  time.Time `yaml:"started_at"`
	EndedAt    time.Time `yaml:"ended_at"`
	Digest     string    `yaml:"digest,omitempty"`
}

// ManifestPath returns the manifest location for a trace file.
func ManifestPath(tracePath string) string {
	return tracePath + ".manifest.yaml"
}

func digestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("blake2b-256:%x", h.Sum(nil)), nil
}

// WriteManifest computes the trace digest and writes the manifest to path.
func WriteManifest(path string, man Manifest) error {
	digest, err := digestFile(man.Path)
	if err != nil {
		return fmt.Errorf("capture: digest trace: %w", err)
	}
	man.Digest = digest

	data, err := yaml.Marshal(man)
	if err != nil {
		return fmt.Errorf("capture: marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("capture: write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by WriteManifest.
func LoadManifest(path string) (Manifest, error) {
	var man Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return man, fmt.Errorf("capture: read manifest: %w", err)
	}
	if err := yaml.Unmarshal(data, &man); err != nil {
		return man, fmt.Errorf("capture: unmarshal manifest: %w", err)
	}
	return man, nil
}

// Verify recomputes the trace digest and compares it with the recorded one.
func (m *Manifest) Verify() error {
	digest, err := digestFile(m.Path)
	if err != nil {
		return fmt.Errorf("capture: digest trace: %w", err)
	}
	if digest != m.Digest {
		return fmt.Errorf("capture: %s: %w", m.Path, ErrDigestMismatch)
	}
	return nil
}
