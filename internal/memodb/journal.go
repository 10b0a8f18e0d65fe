package memodb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"nobs/internal/digest"
)

// recordKind tags the three durable journal record shapes spec.md §4.C
// describes. Failures are deliberately never journalled: a failure leaf
// lives only in the in-memory trie for the life of the process, and
// compaction strips it (the "Failure non-memo" scenario in spec.md §8).
type recordKind byte

const (
	recordTree  recordKind = 1
	recordPrune recordKind = 2
	recordFile  recordKind = 3
)

// traceStepRecord is the durable shape of one trace-seq step: enough to
// rebuild interior nodes and re-descend the trie on replay. Args is kept
// only as its own digest; it is purely informational (hit/miss decisions
// never depend on it, only on name-digest and full-digest), which avoids
// needing a generic round-trippable encoding for arbitrary rule
// arguments.
type traceStepRecord struct {
	Method     string
	ArgsDigest digest.Digest
	NameDigest digest.Digest
	FullDigest digest.Digest
}

type treeRecord struct {
	Steps     []traceStepRecord
	Result    persistedResult
	Artifacts []string
}

// persistedResult is the JSON-encoded shape of a Result. Values and Keyed
// must be JSON-marshalable; that is the one restriction this package
// places on what a memoized rule may return.
type persistedResult struct {
	Values []any          `json:"values"`
	Keyed  map[string]any `json:"keyed,omitempty"`
}

type pruneRecord struct {
	NameSeq []digest.Digest
}

type fileRecord struct {
	Path    string
	MtimeNS int64
	Digest  digest.Digest
}

// journal wraps the append-only file at <site>/.nobs/db.
type journal struct {
	path string
}

func newJournal(path string) *journal {
	return &journal{path: path}
}

// replay opens the journal (if any) and applies every record in order to
// root and files, stopping silently at the first decode error so a
// partially-written trailing record left by a crash does not block
// startup. It returns the byte offset through which decoding succeeded
// (size_head candidate) and the file's total size (size_tail candidate).
func (j *journal) replay(root *Node, files *fileDigestCache) (sizeHead, sizeTail int64, prunedPaths [][]digest.Digest, err error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil, nil
		}
		return 0, 0, nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, 0, nil, err
	}
	total := info.Size()

	r := bufio.NewReader(f)
	var offset int64
decode:
	for {
		kind, payload, n, rerr := readRecord(r)
		if rerr != nil {
			break decode
		}
		switch kind {
		case recordTree:
			var tr treeRecord
			if decodeTreeRecord(payload, &tr) != nil {
				break decode
			}
			applyTreeRecord(root, tr)
		case recordPrune:
			var pr pruneRecord
			if decodePruneRecord(payload, &pr) != nil {
				break decode
			}
			applyPruneRecord(root, pr)
			prunedPaths = append(prunedPaths, pr.NameSeq)
		case recordFile:
			var fr fileRecord
			if decodeFileRecord(payload, &fr) != nil {
				break decode
			}
			files.restore(fr.Path, time.Unix(0, fr.MtimeNS), fr.Digest)
		default:
			break decode
		}
		offset += n
	}
	return offset, total, prunedPaths, nil
}

func (j *journal) appendTree(tr treeRecord) error {
	return j.appendRecord(recordTree, encodeTreeRecord(tr))
}

func (j *journal) appendPrune(pr pruneRecord) error {
	return j.appendRecord(recordPrune, encodePruneRecord(pr))
}

func (j *journal) appendFile(fr fileRecord) error {
	return j.appendRecord(recordFile, encodeFileRecord(fr))
}

func (j *journal) appendRecord(kind recordKind, payload []byte) error {
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := writeRecord(f, kind, payload); err != nil {
		return err
	}
	return f.Sync()
}

// rewrite replaces the journal with exactly the live trie (success
// leaves only, failure subtrees excluded) plus the file-digest cache,
// expressed as a fresh sequence of tree/file records. This is the
// compaction pass of spec.md §4.C.
func (j *journal) rewrite(root *Node, files *fileDigestCache) (sizeHead int64, err error) {
	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(j.path)+".compact.*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	var written int64
	for _, tr := range collectLiveTreeRecords(root, nil) {
		n, werr := writeRecordCounted(tmp, recordTree, encodeTreeRecord(tr))
		if werr != nil {
			return 0, werr
		}
		written += n
	}
	for path, entry := range files.snapshot() {
		n, werr := writeRecordCounted(tmp, recordFile, encodeFileRecord(fileRecord{
			Path: path, MtimeNS: entry.mtime.UnixNano(), Digest: entry.digest,
		}))
		if werr != nil {
			return 0, werr
		}
		written += n
	}
	if err := tmp.Sync(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmpName, j.path); err != nil {
		return 0, err
	}
	committed = true
	return written, nil
}

func collectLiveTreeRecords(n *Node, prefix []traceStepRecord) []treeRecord {
	if n == nil {
		return nil
	}
	switch n.Tag {
	case TagSuccess:
		return []treeRecord{{
			Steps:     append([]traceStepRecord(nil), prefix...),
			Result:    persistedResult{Values: n.Result.Values, Keyed: n.Result.Keyed},
			Artifacts: append([]string(nil), n.Artifacts...),
		}}
	case TagInterior:
		var out []treeRecord
		for name, child := range n.Children {
			step := traceStepRecord{Method: child.Method, NameDigest: name, FullDigest: child.Full}
			if argsDigest, err := digest.Compute(child.Args); err == nil {
				step.ArgsDigest = argsDigest
			}
			out = append(out, collectLiveTreeRecords(child, append(prefix, step))...)
		}
		return out
	default:
		return nil
	}
}

func applyTreeRecord(root *Node, tr treeRecord) {
	cursor := root
	for _, step := range tr.Steps {
		child := cursor.child(step.NameDigest)
		if child == nil {
			child = newInteriorNode(step.Method, digest.Bytes(step.ArgsDigest[:]), step.FullDigest)
			cursor.setChild(step.NameDigest, child)
		} else {
			child.Full = step.FullDigest
			child.Method = step.Method
		}
		cursor = child
	}
	cursor.Tag = TagSuccess
	cursor.Result = Result{Values: tr.Result.Values, Keyed: tr.Result.Keyed}
	cursor.Artifacts = append([]string(nil), tr.Artifacts...)
	cursor.Children = nil
	cursor.Failure = nil
}

func applyPruneRecord(root *Node, pr pruneRecord) {
	if len(pr.NameSeq) == 0 {
		return
	}
	cursor := root
	for _, name := range pr.NameSeq[:len(pr.NameSeq)-1] {
		child := cursor.child(name)
		if child == nil {
			return
		}
		cursor = child
	}
	last := pr.NameSeq[len(pr.NameSeq)-1]
	if cursor.Children != nil {
		delete(cursor.Children, last)
	}
}

// --- wire framing: [1 byte kind][8 byte big-endian length][payload] ---

func writeRecord(w io.Writer, kind recordKind, payload []byte) error {
	_, err := writeRecordCounted(w, kind, payload)
	return err
}

func writeRecordCounted(w io.Writer, kind recordKind, payload []byte) (int64, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(kind))
	var lenBytes [8]byte
	binary.BigEndian.PutUint64(lenBytes[:], uint64(len(payload)))
	buf.Write(lenBytes[:])
	buf.Write(payload)
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func readRecord(r *bufio.Reader) (recordKind, []byte, int64, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return 0, nil, 0, err
	}
	var lenBytes [8]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return 0, nil, 0, err
	}
	length := binary.BigEndian.Uint64(lenBytes[:])
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, 0, err
	}
	return recordKind(kindByte), payload, int64(1 + 8 + len(payload)), nil
}

// --- record payload codecs ---

func encodeTreeRecord(tr treeRecord) []byte {
	var buf bytes.Buffer
	putUint64(&buf, uint64(len(tr.Steps)))
	for _, s := range tr.Steps {
		putString(&buf, s.Method)
		buf.Write(s.ArgsDigest[:])
		buf.Write(s.NameDigest[:])
		buf.Write(s.FullDigest[:])
	}
	resultJSON, _ := json.Marshal(tr.Result)
	putBytes(&buf, resultJSON)
	putUint64(&buf, uint64(len(tr.Artifacts)))
	for _, a := range tr.Artifacts {
		putString(&buf, a)
	}
	return buf.Bytes()
}

func decodeTreeRecord(payload []byte, out *treeRecord) error {
	r := bytes.NewReader(payload)
	stepCount, err := getUint64(r)
	if err != nil {
		return err
	}
	out.Steps = make([]traceStepRecord, 0, stepCount)
	for i := uint64(0); i < stepCount; i++ {
		method, err := getString(r)
		if err != nil {
			return err
		}
		var args, name, full digest.Digest
		if _, err := io.ReadFull(r, args[:]); err != nil {
			return err
		}
		if _, err := io.ReadFull(r, name[:]); err != nil {
			return err
		}
		if _, err := io.ReadFull(r, full[:]); err != nil {
			return err
		}
		out.Steps = append(out.Steps, traceStepRecord{Method: method, ArgsDigest: args, NameDigest: name, FullDigest: full})
	}
	resultJSON, err := getBytes(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resultJSON, &out.Result); err != nil {
		return err
	}
	artifactCount, err := getUint64(r)
	if err != nil {
		return err
	}
	out.Artifacts = make([]string, 0, artifactCount)
	for i := uint64(0); i < artifactCount; i++ {
		a, err := getString(r)
		if err != nil {
			return err
		}
		out.Artifacts = append(out.Artifacts, a)
	}
	return nil
}

func encodePruneRecord(pr pruneRecord) []byte {
	var buf bytes.Buffer
	putUint64(&buf, uint64(len(pr.NameSeq)))
	for _, d := range pr.NameSeq {
		buf.Write(d[:])
	}
	return buf.Bytes()
}

func decodePruneRecord(payload []byte, out *pruneRecord) error {
	r := bytes.NewReader(payload)
	count, err := getUint64(r)
	if err != nil {
		return err
	}
	out.NameSeq = make([]digest.Digest, 0, count)
	for i := uint64(0); i < count; i++ {
		var d digest.Digest
		if _, err := io.ReadFull(r, d[:]); err != nil {
			return err
		}
		out.NameSeq = append(out.NameSeq, d)
	}
	return nil
}

func encodeFileRecord(fr fileRecord) []byte {
	var buf bytes.Buffer
	putString(&buf, fr.Path)
	putUint64(&buf, uint64(fr.MtimeNS))
	buf.Write(fr.Digest[:])
	return buf.Bytes()
}

func decodeFileRecord(payload []byte, out *fileRecord) error {
	r := bytes.NewReader(payload)
	path, err := getString(r)
	if err != nil {
		return err
	}
	mtime, err := getUint64(r)
	if err != nil {
		return err
	}
	var d digest.Digest
	if _, err := io.ReadFull(r, d[:]); err != nil {
		return err
	}
	out.Path = path
	out.MtimeNS = int64(mtime)
	out.Digest = d
	return nil
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putBytes(buf *bytes.Buffer, data []byte) {
	putUint64(buf, uint64(len(data)))
	buf.Write(data)
}

func putString(buf *bytes.Buffer, s string) {
	putBytes(buf, []byte(s))
}

func getUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

func getBytes(r *bytes.Reader) ([]byte, error) {
	n, err := getUint64(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

func getString(r *bytes.Reader) (string, error) {
	b, err := getBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

