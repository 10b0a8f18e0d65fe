package memodb

import (
	"os"
	"sync"
	"time"

	"nobs/internal/digest"
)

// missingFileDigest is the distinguished sentinel returned for a path
// that does not exist, so that "file appeared" and "file vanished" are
// both observable as digest changes rather than errors.
var missingFileDigest = digest.MustCompute(digest.Str("nobs:memodb:missing-file"))

type fileDigestEntry struct {
	mtime  time.Time
	digest digest.Digest
}

// fileDigestCache mirrors spec.md §4.C's file_digest: mtime-gated so an
// unchanged file is never reread, and every recomputation is durably
// recorded via the journal's "file" record so a restart doesn't need to
// rehash the world.
type fileDigestCache struct {
	mu      sync.Mutex
	entries map[string]fileDigestEntry
}

func newFileDigestCache() *fileDigestCache {
	return &fileDigestCache{entries: make(map[string]fileDigestEntry)}
}

// digestFile returns the current digest for path, consulting the cache
// first and rehashing only when the file's mtime has moved since it was
// last observed. fresh reports whether this call rehashed the file (the
// caller should then durably record a "file" journal record).
//
// Per spec.md §5 the file-digest cache is mutated only while holding the
// memo-DB lock; here that lock is the cache's own mutex rather than the
// database's, since the cache's consistency does not otherwise depend on
// trie state.
func (c *fileDigestCache) digestFile(path string) (d digest.Digest, fresh bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		delete(c.entries, path)
		return missingFileDigest, false, nil
	}
	if err != nil {
		return digest.Digest{}, false, err
	}
	mtime := info.ModTime()
	if cached, ok := c.entries[path]; ok && cached.mtime.Equal(mtime) {
		return cached.digest, false, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return digest.Digest{}, false, err
	}
	d, err = digest.Compute(digest.Str(path), digest.Bytes(content))
	if err != nil {
		return digest.Digest{}, false, err
	}
	c.entries[path] = fileDigestEntry{mtime: mtime, digest: d}
	return d, true, nil
}

func (c *fileDigestCache) restore(path string, mtime time.Time, d digest.Digest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = fileDigestEntry{mtime: mtime, digest: d}
}

func (c *fileDigestCache) snapshot() map[string]fileDigestEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]fileDigestEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}
