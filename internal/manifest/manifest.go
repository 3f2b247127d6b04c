// Package manifest reads the identity metadata embedded in mod artifacts.
package manifest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
)

// Manifest entry names checked inside an artifact, in priority order.
var ManifestNames = []string{
	"META-INF/neoforge.mods.toml",
	"META-INF/mods.toml",
}

// Identity is what an artifact declares about itself. The zero value means
// the artifact carries no readable manifest.
type Identity struct {
	// IDs are lowercased, deduplicated and sorted.
	IDs      []string
	Versions map[string]string
	Names    map[string]string
}

// Known reports whether the artifact declared at least one id.
func (i Identity) Known() bool {
	return len(i.IDs) > 0
}

// Version returns the declared version for id, if any.
func (i Identity) Version(id string) (string, bool) {
	v, ok := i.Versions[strings.ToLower(strings.TrimSpace(id))]
	return v, ok
}

// DisplayName returns the first declared display name, or "".
func (i Identity) DisplayName() string {
	for _, id := range i.IDs {
		if n := i.Names[id]; n != "" {
			return n
		}
	}
	return ""
}

// Reader extracts an Identity from an artifact.
type Reader interface {
	ReadIdentity(artifact []byte) (Identity, error)
	ReadIdentityFile(path string) (Identity, error)
}

// TOMLReader reads mods.toml style manifests.
type TOMLReader struct{}

type modsFile struct {
	Mods []struct {
		ModID       string `toml:"modId"`
		Version     string `toml:"version"`
		DisplayName string `toml:"displayName"`
	} `toml:"mods"`
}

// ReadIdentity reads the manifest from an in-memory artifact.
func (TOMLReader) ReadIdentity(artifact []byte) (Identity, error) {
	zr, err := zip.NewReader(bytes.NewReader(artifact), int64(len(artifact)))
	if err != nil {
		return Identity{}, fmt.Errorf("opening artifact: %w", err)
	}
	return readFrom(zr)
}

// ReadIdentityFile reads the manifest from an artifact on disk.
func (TOMLReader) ReadIdentityFile(path string) (Identity, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Identity{}, fmt.Errorf("opening artifact %s: %w", path, err)
	}
	defer zr.Close()
	return readFrom(&zr.Reader)
}

func readFrom(zr *zip.Reader) (Identity, error) {
	for _, name := range ManifestNames {
		f := findEntry(zr, name)
		if f == nil {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Identity{}, fmt.Errorf("opening %s: %w", name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return Identity{}, fmt.Errorf("reading %s: %w", name, err)
		}
		return Parse(data)
	}
	return Identity{}, nil
}

func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name && !f.FileInfo().IsDir() {
			return f
		}
	}
	return nil
}

// Parse decodes manifest TOML. Blank ids are ignored.
func Parse(data []byte) (Identity, error) {
	var mf modsFile
	if _, err := toml.Decode(string(data), &mf); err != nil {
		return Identity{}, fmt.Errorf("parsing manifest: %w", err)
	}

	id := Identity{
		Versions: make(map[string]string),
		Names:    make(map[string]string),
	}
	for _, m := range mf.Mods {
		modID := strings.ToLower(strings.TrimSpace(m.ModID))
		if modID == "" {
			continue
		}
		if !slices.Contains(id.IDs, modID) {
			id.IDs = append(id.IDs, modID)
		}
		if v := strings.TrimSpace(m.Version); v != "" {
			id.Versions[modID] = v
		}
		if n := strings.TrimSpace(m.DisplayName); n != "" {
			id.Names[modID] = n
		}
	}
	slices.Sort(id.IDs)
	return id, nil
}
