package memodb

import (
	"fmt"
	"os"
	"path/filepath"

	"nobs/internal/digest"
)

// artifactName allocates the on-disk name for an artifact, derived from
// the full-digest set accumulated by the execute call so far mixed with
// a per-call key, per spec.md §4.C/§6: "<prefix>.<hex-of-digest>.<suffix>".
func (ec *ExecuteContext) artifactName(key, suffix string) (string, error) {
	mixed := make(digest.Set, 0, len(ec.mix)+1)
	for _, d := range ec.mix {
		mixed = append(mixed, digest.Bytes(d[:]))
	}
	mixed = append(mixed, digest.Str(key))
	d, err := digest.Compute(mixed)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s.%s", key, d.String())
	if suffix != "" {
		name = name + "." + suffix
	}
	return name, nil
}

// MkPath allocates (without creating) a file path for an artifact named
// by key, for callers that will write the file themselves.
func (ec *ExecuteContext) MkPath(key, suffix string) (string, error) {
	name, err := ec.artifactName(key, suffix)
	if err != nil {
		return "", err
	}
	path := filepath.Join(ec.db.artifactDir, name)
	ec.artifacts = append(ec.artifacts, path)
	return path, nil
}

// MkTree allocates and creates an artifact directory.
func (ec *ExecuteContext) MkTree(key string) (string, error) {
	path, err := ec.MkPath(key, "")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// MkDtemp allocates and creates a uniquely-named temporary directory
// under the artifact directory, additionally salted with a random
// component (via os.MkdirTemp) so repeated calls with the same key never
// collide within one execute call.
func (ec *ExecuteContext) MkDtemp(key string) (string, error) {
	name, err := ec.artifactName(key, "")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(ec.db.artifactDir, 0o755); err != nil {
		return "", err
	}
	path, err := os.MkdirTemp(ec.db.artifactDir, name+".*")
	if err != nil {
		return "", err
	}
	ec.artifacts = append(ec.artifacts, path)
	return path, nil
}

// MkStemp allocates and creates a uniquely-named temporary file under
// the artifact directory, returning it open for writing.
func (ec *ExecuteContext) MkStemp(key, suffix string) (string, *os.File, error) {
	name, err := ec.artifactName(key, "")
	if err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(ec.db.artifactDir, 0o755); err != nil {
		return "", nil, err
	}
	pattern := name + ".*"
	if suffix != "" {
		pattern += "." + suffix
	}
	f, err := os.CreateTemp(ec.db.artifactDir, pattern)
	if err != nil {
		return "", nil, err
	}
	ec.artifacts = append(ec.artifacts, f.Name())
	return f.Name(), f, nil
}

// removeArtifacts deletes every path in paths, used both when a failure
// leaf discards its own artifacts and when a prune removes a subtree's.
func removeArtifacts(paths []string) {
	for _, p := range paths {
		_ = os.RemoveAll(p)
	}
}
