package persistence

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sync"
)

// ErrActorIDMismatch is returned by Open when the log file on disk was
// written for a different actorID than the one being opened with now.
var ErrActorIDMismatch = errors.New("persistence: wal actor id mismatch")

// WAL is a minimal write-ahead log used for mailbox persistence, scoped to
// one actor the same way SQLStore's mailbox_log rows are scoped by
// actor_id: the file opens with a length-prefixed actorID header, and
// every record appended after it belongs to that actor.
//
// Record format: [4-byte little-endian length][payload bytes], repeated.
//
// WAL provides atomic append/read; a typical actor startup replays it to
// seed the mailbox and appends every message before enqueuing it. WAL has
// no truncate or compaction operation: records stay in the file.
type WAL struct {
	// mu 保护并发访问
	mu sync.Mutex
	// f 底层文件
	f *os.File
	// path 文件路径
	path string
	// actorID is the actor this log is scoped to.
	actorID string
	// headerLen is the byte offset where the record stream begins, past
	// the actorID header.
	headerLen int64
}

// Open opens or creates the WAL at path, scoped to actorID. A fresh file
// is given a header recording actorID; reopening an existing file fails
// with ErrActorIDMismatch if its header names a different actor — the WAL
// counterpart to OpenSQLStore's actorID-scoped query filter, so one log
// file can never be accidentally replayed into the wrong actor's mailbox.
func Open(path string, actorID string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	w := &WAL{f: f, path: path, actorID: actorID}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		err = w.writeHeader()
	} else {
		err = w.checkHeader()
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// ActorID returns the actor this log is scoped to.
func (w *WAL) ActorID() string { return w.actorID }

func (w *WAL) writeHeader() error {
	b := []byte(w.actorID)
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.f.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.f.Write(b); err != nil {
		return err
	}
	w.headerLen = 4 + int64(len(b))
	return nil
}

func (w *WAL) checkHeader() error {
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	var hdr [4]byte
	if _, err := io.ReadFull(w.f, hdr[:]); err != nil {
		return err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(w.f, buf); err != nil {
		return err
	}
	if string(buf) != w.actorID {
		return ErrActorIDMismatch
	}
	w.headerLen = 4 + int64(n)
	return nil
}

// Close 关闭底层文件。可以安全地多次调用。
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// Append 向日志追加一条记录。
// 记录格式：4 字节长度前缀 + 负载数据，写在 actorID 头部之后。
// 如果负载为空，不执行任何操作。
func (w *WAL) Append(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return os.ErrClosed
	}
	if _, err := w.f.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	buf := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(b)))
	copy(buf[4:], b)
	if _, err := w.f.Write(buf); err != nil {
		return err
	}
	return nil
}

// Replay 从头部之后读取记录并按顺序返回负载。
// 截断的记录被视为日志结束。
// 重放完成后，文件指针定位到末尾，以便后续追加。
func (w *WAL) Replay() ([][]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil, os.ErrClosed
	}
	if _, err := w.f.Seek(w.headerLen, io.SeekStart); err != nil {
		return nil, err
	}
	var out [][]byte
	var lenBuf [4]byte
	for {
		_, err := io.ReadFull(w.f, lenBuf[:])
		if err != nil {
			break
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if n == 0 {
			continue
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(w.f, buf); err != nil {
			break
		}
		out = append(out, buf)
	}
	_, _ = w.f.Seek(0, io.SeekEnd)
	return out, nil
}
