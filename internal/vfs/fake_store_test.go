package vfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wforney/net-ipfs-mount/internal/resources"
	"github.com/wforney/net-ipfs-mount/internal/store"
)

var errStoreDown = errors.New("connection refused")

// fakeStore serves nodes keyed by the path passed to GetNode and file
// content keyed by node id.
type fakeStore struct {
	mu       sync.Mutex
	nodes    map[string]*store.Node
	content  map[string][]byte
	pins     []string
	pinErr   error
	readErr  error
	chunk    int // bytes returned per Read call, 0 for everything at once
	getCalls []string
	reads    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:   make(map[string]*store.Node),
		content: make(map[string][]byte),
	}
}

func (s *fakeStore) addFile(path, id string, data []byte) {
	s.nodes[path] = &store.Node{ID: id, Size: int64(len(data))}
	s.content[id] = data
}

func (s *fakeStore) GetNode(ctx context.Context, path string) (*store.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls = append(s.getCalls, path)
	n, ok := s.nodes[path]
	if !ok {
		return nil, &store.APIError{Message: "not found", StatusCode: 500}
	}
	return n, nil
}

func (s *fakeStore) ReadRange(ctx context.Context, id string, offset, length int64) (io.ReadCloser, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	data, ok := s.content[id]
	if !ok {
		return nil, errStoreDown
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	end := offset + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return &chunkReader{s: s, r: bytes.NewReader(data[offset:end])}, nil
}

func (s *fakeStore) ListPinned(ctx context.Context) ([]string, error) {
	if s.pinErr != nil {
		return nil, s.pinErr
	}
	return s.pins, nil
}

func (s *fakeStore) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.getCalls...)
}

type chunkReader struct {
	s *fakeStore
	r *bytes.Reader
}

func (c *chunkReader) Read(p []byte) (int, error) {
	c.s.mu.Lock()
	c.s.reads++
	c.s.mu.Unlock()
	if c.s.chunk > 0 && len(p) > c.s.chunk {
		p = p[:c.s.chunk]
	}
	return c.r.Read(p)
}

func (c *chunkReader) Close() error { return nil }

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testStatics() *resources.Table {
	return resources.FromMap(map[string][]byte{
		"README.txt":  []byte("hello world"),
		"autorun.inf": []byte("[autorun]\r\nlabel=Interplanetary\r\n"),
	})
}

func testFS(st Store, sep rune) (*FS, *bytes.Buffer) {
	out := &bytes.Buffer{}
	f := New(st, testStatics(), Options{
		Separator: sep,
		Now:       func() time.Time { return fixedNow },
		Out:       out,
		Logger:    zap.NewNop(),
	})
	return f, out
}
