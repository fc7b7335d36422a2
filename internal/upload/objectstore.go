package upload

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// ObjectStore holds uploaded photo objects. Deleting a missing key is not an
// error.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, metadata map[string]string, body io.Reader) error
	URL(ctx context.Context, key string) (string, error)
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, key string) error
}

type Object struct {
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// MemoryObjectStore keeps objects in process memory.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
}

func NewMemoryObjectStore(baseURL string) *MemoryObjectStore {
	if baseURL == "" {
		baseURL = "memory://objects"
	}
	return &MemoryObjectStore{
		objects: make(map[string]Object),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *MemoryObjectStore) Put(ctx context.Context, key, contentType string, metadata map[string]string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Data: data, ContentType: contentType, Metadata: meta}
	return nil
}

func (s *MemoryObjectStore) URL(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", ErrObjectNotFound
	}
	return s.baseURL + "/" + key, nil
}

func (s *MemoryObjectStore) Copy(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[src]
	if !ok {
		return ErrObjectNotFound
	}
	cp := Object{
		Data:        bytes.Clone(obj.Data),
		ContentType: obj.ContentType,
		Metadata:    make(map[string]string, len(obj.Metadata)),
	}
	for k, v := range obj.Metadata {
		cp.Metadata[k] = v
	}
	s.objects[dst] = cp
	return nil
}

func (s *MemoryObjectStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// Get returns a copy of the object stored under key.
func (s *MemoryObjectStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return Object{}, false
	}
	obj.Data = bytes.Clone(obj.Data)
	return obj, true
}

// Keys lists stored keys in lexical order.
func (s *MemoryObjectStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
