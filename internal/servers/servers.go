// Package servers remembers which update base URL belongs to which game
// server address.
package servers

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/Maeiro/MMMMM/internal/config"
)

// Entry is one stored mapping.
type Entry struct {
	Address string
	URL     string
}

type file struct {
	Servers map[string]string `toml:"servers"`
}

// Registry is a TOML-backed address to URL map. Mutations are saved
// immediately.
type Registry struct {
	path string
	port int

	mu      sync.Mutex
	entries map[string]string
}

// DefaultPath returns the registry file, using XDG_CONFIG_HOME with a
// fallback to ~/.config.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "mmmmm", "servers.toml")
}

// Open loads the registry at path. A missing file yields an empty registry.
// port is the distribution server port used for default URLs.
func Open(path string, port int) (*Registry, error) {
	if port <= 0 {
		port = config.DefaultPort
	}
	r := &Registry{path: path, port: port, entries: make(map[string]string)}

	var f file
	if _, err := toml.DecodeFile(path, &f); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("loading server registry: %w", err)
	}
	for addr, u := range f.Servers {
		r.entries[addr] = u
	}
	return r, nil
}

// Get returns the stored URL for addr.
func (r *Registry) Get(addr string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.entries[strings.TrimSpace(addr)]
	if !ok || strings.TrimSpace(u) == "" {
		return "", false
	}
	return u, true
}

// Resolve returns the stored URL for addr, or the default
// http://<host>:<port> derived from it.
func (r *Registry) Resolve(addr string) string {
	if u, ok := r.Get(addr); ok {
		return u
	}
	return DefaultURL(addr, r.port)
}

// Set stores url for addr.
func (r *Registry) Set(addr, u string) error {
	addr, u = strings.TrimSpace(addr), strings.TrimSpace(u)
	if addr == "" || u == "" {
		return fmt.Errorf("server address and URL must not be blank")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[addr] = u
	return r.saveLocked()
}

// SetDefaultIfMissing stores the default URL for addr unless one exists.
// It reports whether an entry was added.
func (r *Registry) SetDefaultIfMissing(addr string) (bool, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false, nil
	}
	if _, ok := r.Get(addr); ok {
		return false, nil
	}
	def := DefaultURL(addr, r.port)
	if def == "" {
		return false, nil
	}
	return true, r.Set(addr, def)
}

// Remove deletes addr. It reports whether an entry existed.
func (r *Registry) Remove(addr string) (bool, error) {
	addr = strings.TrimSpace(addr)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[addr]; !ok {
		return false, nil
	}
	delete(r.entries, addr)
	return true, r.saveLocked()
}

// List returns all entries sorted by address.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for addr, u := range r.entries {
		out = append(out, Entry{Address: addr, URL: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (r *Registry) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("creating registry directory: %w", err)
	}
	tmp := r.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating registry file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(file{Servers: r.entries}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encoding registry: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing registry file: %w", err)
	}
	return os.Rename(tmp, r.path)
}

// DefaultURL builds http://<host>:<port> from a server address such as
// "play.example.com:25565", "[::1]:25565" or a full URL. IPv6 hosts are
// bracketed. It returns "" for a blank address.
func DefaultURL(addr string, port int) string {
	host := extractHost(addr)
	if host == "" {
		return ""
	}
	if port <= 0 {
		port = config.DefaultPort
	}
	if strings.Contains(host, ":") && !(strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]")) {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + strconv.Itoa(port)
}

func extractHost(addr string) string {
	s := strings.TrimSpace(addr)
	if s == "" {
		return ""
	}

	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}

	if strings.HasPrefix(s, "[") {
		if end := strings.Index(s, "]"); end > 1 {
			return s[1:end]
		}
	}

	// Exactly one colon: host:port. More than one is a bare IPv6 address.
	if strings.Count(s, ":") == 1 {
		i := strings.LastIndex(s, ":")
		if port := s[i+1:]; port != "" && allDigits(port) {
			return s[:i]
		}
	}
	return s
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
