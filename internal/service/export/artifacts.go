package export

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Alijeyrad/careflow_backend/pkg/crypto"
	"github.com/Alijeyrad/careflow_backend/pkg/s3"
)

const DefaultArtifactPrefix = "exports"

// ArtifactStore keeps rendered exports until their tokens expire.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// BlobBackend is the raw object storage under an ArtifactStore. *s3.Client
// satisfies it.
type BlobBackend interface {
	Upload(ctx context.Context, key, contentType string, body []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ArtifactKey lays out objects as <prefix>/<facility_id>/<uuid>.xlsx.
func ArtifactKey(prefix string, facilityID uuid.UUID) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultArtifactPrefix
	}
	return path.Join(prefix, facilityID.String(), uuid.NewString()+".xlsx")
}

type sealedStore struct {
	backend BlobBackend
	sealer  *crypto.Sealer
}

// NewArtifactStore seals bodies before they reach backend. A nil or
// key-less sealer stores plaintext.
func NewArtifactStore(backend BlobBackend, sealer *crypto.Sealer) ArtifactStore {
	return &sealedStore{backend: backend, sealer: sealer}
}

func (s *sealedStore) Put(ctx context.Context, key string, body []byte) error {
	sealed, err := s.sealer.Seal(key, body)
	if err != nil {
		return fmt.Errorf("seal artifact: %w", err)
	}
	return s.backend.Upload(ctx, key, s.contentType(), sealed)
}

func (s *sealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.backend.Download(ctx, key)
	if errors.Is(err, s3.ErrObjectNotFound) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, err
	}
	plain, err := s.sealer.Open(key, b)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return plain, nil
}

func (s *sealedStore) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

func (s *sealedStore) contentType() string {
	if s.sealer.Enabled() {
		return "application/octet-stream"
	}
	return ContentTypeXLSX
}

// MemoryBlobs is an in-process BlobBackend for local runs and tests.
type MemoryBlobs struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{objects: map[string][]byte{}}
}

func (m *MemoryBlobs) Upload(_ context.Context, key, _ string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), body...)
	return nil
}

func (m *MemoryBlobs) Download(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, s3.ErrObjectNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryBlobs) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryBlobs) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
