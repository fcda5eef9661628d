package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/relab/paxos"
	"github.com/relab/paxos/internal/protostream"
	"github.com/relab/paxos/wire"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// DefaultCompactAfter is the number of records after which a File is compacted.
const DefaultCompactAfter = 1024

// File is a Store backed by an append-only log of state records.
// Every Save appends a record and syncs the file. On open, the last complete record
// is recovered and a torn record at the end of the log is discarded.
// The log is rewritten with a single record when it grows past the compaction limit.
type File struct {
	mut          sync.Mutex
	path         string
	f            *os.File
	w            *protostream.Writer
	records      int
	compactAfter int

	state paxos.AcceptorState
	saved bool
}

// OpenFile opens or creates the log at path.
func OpenFile(path string) (*File, error) {
	s := &File{path: path, compactAfter: DefaultCompactAfter}
	if err := s.recover(); err != nil {
		return nil, err
	}
	// Start from a clean log, so a torn record is never followed by new ones.
	if err := s.compact(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCompactAfter sets the number of records after which the log is compacted.
func (s *File) SetCompactAfter(n int) {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.compactAfter = n
}

func (s *File) recover() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: open %s: %w", s.path, err)
	}
	defer f.Close()

	r := protostream.NewReader(f)
	for {
		var rec wrapperspb.BytesValue
		err := r.Read(&rec)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("storage: read %s: %w", s.path, err)
		}
		state, err := wire.UnmarshalState(rec.GetValue())
		if err != nil {
			return fmt.Errorf("storage: decode %s: %w", s.path, err)
		}
		s.state = state
		s.saved = true
	}
}

// compact writes the current state to a new log and replaces the old one with it.
func (s *File) compact() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("storage: compact: %w", err)
	}
	records, err := s.writeSnapshot(tmp)
	if err == nil {
		err = os.Rename(tmp.Name(), s.path)
	}
	if err != nil {
		return multierr.Combine(fmt.Errorf("storage: compact: %w", err), tmp.Close(), os.Remove(tmp.Name()))
	}
	if s.f != nil {
		// the old file is already replaced
		_ = s.f.Close()
	}
	s.f = tmp
	s.w = protostream.NewWriter(tmp)
	s.records = records
	return syncDir(filepath.Dir(s.path))
}

func (s *File) writeSnapshot(f *os.File) (int, error) {
	records := 0
	if s.saved {
		if err := protostream.NewWriter(f).Write(stateRecord(s.state)); err != nil {
			return 0, err
		}
		records = 1
	}
	return records, f.Sync()
}

func stateRecord(state paxos.AcceptorState) *wrapperspb.BytesValue {
	return wrapperspb.Bytes(wire.MarshalState(state))
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("storage: sync dir: %w", err)
	}
	return multierr.Append(d.Sync(), d.Close())
}

func (s *File) Load(_ context.Context) (paxos.AcceptorState, bool, error) {
	s.mut.Lock()
	defer s.mut.Unlock()
	return s.state, s.saved, nil
}

func (s *File) Save(_ context.Context, state paxos.AcceptorState) error {
	s.mut.Lock()
	defer s.mut.Unlock()

	if s.f == nil {
		return os.ErrClosed
	}
	if err := s.w.Write(stateRecord(state)); err != nil {
		return fmt.Errorf("storage: save: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("storage: save: %w", err)
	}
	s.state = state
	s.saved = true
	s.records++
	if s.compactAfter > 0 && s.records > s.compactAfter {
		return s.compact()
	}
	return nil
}

func (s *File) Close() error {
	s.mut.Lock()
	defer s.mut.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
