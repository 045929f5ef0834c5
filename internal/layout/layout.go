// Package layout maps remote object keys to local filesystem paths and back.
//
// Mapping is pure string computation: no I/O, no side effects. Every mapped
// path is verified to stay inside the output root, so a crafted key cannot
// escape it regardless of the selected policy.
package layout

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/parakeet-ml/ckptsync/ckpttypes"
	syncerrors "github.com/parakeet-ml/ckptsync/errors"
)

// Map resolves the local destination for a remote object key under the
// given checkpoint prefix, output root, and layout policy.
//
// It fails with ErrInvalidKey when the key is malformed, contains traversal
// segments, does not belong to the checkpoint prefix (for prefix-relative
// policies), or would resolve outside the output root.
func Map(key, prefix, root string, policy ckpttypes.LayoutPolicy) (string, error) {
	if key == "" {
		return "", syncerrors.NewKeyError("map", key, syncerrors.ErrInvalidKey).
			WithMessage("object key cannot be empty")
	}
	if strings.HasSuffix(key, "/") {
		return "", syncerrors.NewKeyError("map", key, syncerrors.ErrInvalidKey).
			WithMessage("pseudo-directory marker has no destination")
	}
	if hasTraversal(key) {
		return "", syncerrors.NewKeyError("map", key, syncerrors.ErrInvalidKey).
			WithMessage("object key contains path traversal sequences")
	}

	prefix = strings.TrimSuffix(prefix, "/")

	var rel string
	switch policy {
	case ckpttypes.LayoutFullMirror:
		rel = key
	case ckpttypes.LayoutStripPrefix:
		sub, err := relativeToPrefix(key, prefix)
		if err != nil {
			return "", err
		}
		rel = sub
	case ckpttypes.LayoutFlatten:
		rel = path.Join(lastSegment(prefix), path.Base(key))
	case ckpttypes.LayoutSubfolder:
		sub, err := relativeToPrefix(key, prefix)
		if err != nil {
			return "", err
		}
		rel = path.Join(lastSegment(prefix), sub)
	default:
		return "", syncerrors.NewKeyError("map", key, syncerrors.ErrInvalidInput).
			WithMessage("unknown layout policy " + string(policy))
	}

	dst := filepath.Join(root, filepath.FromSlash(rel))
	if !contained(root, dst) {
		return "", syncerrors.NewKeyError("map", key, syncerrors.ErrInvalidKey).
			WithMessage("mapped path escapes output root " + root)
	}
	return dst, nil
}

// Key derives the remote object key for a local file during upload: the
// checkpoint prefix plus the file's path relative to the local root, with
// forward-slash separators. Files outside the local root are rejected.
func Key(localPath, localRoot, prefix string) (string, error) {
	rel, err := filepath.Rel(localRoot, localPath)
	if err != nil {
		return "", syncerrors.NewError("key", syncerrors.ErrInvalidKey).
			WithPath(localPath).
			WithMessage("cannot make path relative to " + localRoot)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", syncerrors.NewError("key", syncerrors.ErrInvalidKey).
			WithPath(localPath).
			WithMessage("path is outside local root " + localRoot)
	}
	return path.Join(strings.TrimSuffix(prefix, "/"), rel), nil
}

// relativeToPrefix returns the key's sub-path under the checkpoint prefix.
func relativeToPrefix(key, prefix string) (string, error) {
	if prefix == "" {
		return key, nil
	}
	if !strings.HasPrefix(key, prefix+"/") {
		return "", syncerrors.NewKeyError("map", key, syncerrors.ErrInvalidKey).
			WithMessage("object key is outside checkpoint prefix " + prefix)
	}
	return strings.TrimPrefix(key, prefix+"/"), nil
}

// lastSegment returns the final path segment of the checkpoint prefix,
// used as the fixed subfolder by the flatten and subfolder policies.
func lastSegment(prefix string) string {
	if prefix == "" {
		return ""
	}
	return path.Base(prefix)
}

// hasTraversal checks for path traversal attempts in object keys.
func hasTraversal(key string) bool {
	if strings.Contains(key, "..") {
		return true
	}

	cleaned := path.Clean(key)
	if strings.HasPrefix(cleaned, "..") || strings.HasPrefix(cleaned, "/") {
		return true
	}

	// Windows-style absolute paths smuggled into a key
	if len(cleaned) >= 3 && cleaned[1] == ':' && (cleaned[2] == '\\' || cleaned[2] == '/') {
		return true
	}

	return false
}

// contained reports whether dst is a strict descendant of root.
func contained(root, dst string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), dst)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
