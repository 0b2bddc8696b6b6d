// Package tape is the engine's append-only audit log: every accepted
// submission, every fill, every reset, CRC-framed across rotating
// segment files. It is a reporting artifact, not a recovery log; the
// book is never rebuilt from it.
package tape

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"time"

	"matchbook/infra/memory"
)

var ErrCorruptRecord = errors.New("tape: crc mismatch")

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
}

type Tape struct {
	mu         sync.Mutex
	dir        string
	segSize    int64
	segAge     time.Duration
	current    *segment
	segIndex   int
	lastRotate time.Time
	frames     *memory.Pool[[]byte]
}

// Open appends to the highest existing segment in cfg.Dir, creating
// the directory and segment-000000 on first use.
func Open(cfg Config) (*Tape, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	idx, err := lastSegmentIndex(cfg.Dir)
	if err != nil {
		return nil, err
	}
	seg, err := openSegment(cfg.Dir, idx)
	if err != nil {
		return nil, err
	}

	return &Tape{
		dir:        cfg.Dir,
		segSize:    cfg.SegmentSize,
		segAge:     cfg.SegmentDuration,
		current:    seg,
		segIndex:   idx,
		lastRotate: time.Now(),
		frames: memory.NewPool(func() *[]byte {
			b := make([]byte, 0, 256)
			return &b
		}),
	}, nil
}

// Append frames and writes one record. Safe for concurrent use; the
// workers all feed one tape.
func (t *Tape) Append(r *Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	bufp := t.frames.Get()
	buf := appendFrame((*bufp)[:0], r)
	err := t.current.append(buf)
	*bufp = buf[:0]
	t.frames.Put(bufp)
	if err != nil {
		return err
	}

	if t.current.offset >= t.segSize ||
		(t.segAge > 0 && time.Since(t.lastRotate) >= t.segAge) {
		return t.rotate()
	}
	return nil
}

// Frame:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
// crc covers everything before it.
func appendFrame(buf []byte, r *Record) []byte {
	buf = append(buf, byte(r.Type))
	buf = binary.BigEndian.AppendUint64(buf, r.Seq)
	buf = binary.BigEndian.AppendUint64(buf, uint64(r.Time))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(r.Data)))
	buf = append(buf, r.Data...)
	crc := crc32.ChecksumIEEE(buf)
	return binary.BigEndian.AppendUint32(buf, crc)
}

func (t *Tape) rotate() error {
	_ = t.current.close()
	t.segIndex++

	seg, err := openSegment(t.dir, t.segIndex)
	if err != nil {
		return err
	}

	t.current = seg
	t.lastRotate = time.Now()
	return nil
}

// Sync flushes the current segment to disk.
func (t *Tape) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current.sync()
}

func (t *Tape) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.current.sync()
	return t.current.close()
}

// TruncateBefore removes whole segments whose records all have
// seq <= the given cutoff.
func (t *Tape) TruncateBefore(seq uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	files, err := filepath.Glob(filepath.Join(t.dir, "segment-*.tape"))
	if err != nil {
		return err
	}

	for _, path := range files {
		if filepath.Base(path) == segmentName(t.segIndex) {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

func lastSegmentIndex(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "segment-*.tape"))
	if err != nil {
		return 0, err
	}
	idx := 0
	for _, path := range files {
		var n int
		if _, err := parseSegmentName(filepath.Base(path), &n); err == nil && n > idx {
			idx = n
		}
	}
	return idx, nil
}
