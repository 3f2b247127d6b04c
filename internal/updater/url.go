package updater

import "strings"

// BuildDownloadURL joins an update base URL and an artifact name. The base
// may be a bare host, a directory URL, or already point at any .zip, whose
// last segment is then replaced. It reports false for a blank base.
func BuildDownloadURL(base, artifact string) (string, bool) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", false
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	suffix := "/" + artifact
	if strings.HasSuffix(base, suffix) {
		return base, true
	}

	hostStart := strings.Index(base, "://") + len("://")
	if slash := strings.LastIndex(base, "/"); slash >= hostStart && strings.HasSuffix(base[slash+1:], ".zip") {
		base = base[:slash]
	}

	if strings.HasSuffix(base, "/") {
		return base + artifact, true
	}
	return base + suffix, true
}
