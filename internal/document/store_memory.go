package document

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "doccontrol/pkg/domain"
	"doccontrol/pkg/platform/sentinel"
)

// InMemoryStore backs unit tests and the no-database wiring.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*Document
	byNumber  map[string]id.DocumentID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		documents: make(map[id.DocumentID]*Document),
		byNumber:  make(map[string]id.DocumentID),
	}
}

func (s *InMemoryStore) CreateIfNumberAvailable(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(doc.Number)
	if _, exists := s.byNumber[key]; exists {
		return sentinel.ErrConflict
	}
	clone := *doc
	s.documents[doc.ID] = &clone
	s.byNumber[key] = doc.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, documentID id.DocumentID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *doc
	return &clone, nil
}

func (s *InMemoryStore) Update(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[doc.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *doc
	s.documents[doc.ID] = &clone
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.documents))
	for _, doc := range s.documents {
		clone := *doc
		docs = append(docs, &clone)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].UpdatedAt.After(docs[j].UpdatedAt) })
	return docs, nil
}

// InMemoryVersionStore holds document versions keyed by version id.
type InMemoryVersionStore struct {
	mu       sync.RWMutex
	versions map[id.DocumentVersionID]*Version
}

func NewInMemoryVersionStore() *InMemoryVersionStore {
	return &InMemoryVersionStore{versions: make(map[id.DocumentVersionID]*Version)}
}

func (s *InMemoryVersionStore) Create(_ context.Context, version *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *version
	s.versions[version.ID] = &clone
	return nil
}

func (s *InMemoryVersionStore) FindByID(_ context.Context, versionID id.DocumentVersionID) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.versions[versionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *v
	return &clone, nil
}

func (s *InMemoryVersionStore) SupersedeOthers(_ context.Context, documentID id.DocumentID, keep id.DocumentVersionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.versions {
		if v.DocumentID == documentID && v.ID != keep {
			v.IsSuperseded = true
		}
	}
	return nil
}

func (s *InMemoryVersionStore) ListByDocument(_ context.Context, documentID id.DocumentID) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var versions []*Version
	for _, v := range s.versions {
		if v.DocumentID == documentID {
			clone := *v
			versions = append(versions, &clone)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].CreatedAt.After(versions[j].CreatedAt) })
	return versions, nil
}

// InMemoryTypeStore holds document type reference data.
type InMemoryTypeStore struct {
	mu     sync.RWMutex
	types  map[id.DocumentTypeID]*Type
	byName map[string]id.DocumentTypeID
}

func NewInMemoryTypeStore() *InMemoryTypeStore {
	return &InMemoryTypeStore{
		types:  make(map[id.DocumentTypeID]*Type),
		byName: make(map[string]id.DocumentTypeID),
	}
}

func (s *InMemoryTypeStore) CreateIfNameAvailable(_ context.Context, docType *Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(docType.Name)
	if _, exists := s.byName[key]; exists {
		return sentinel.ErrConflict
	}
	clone := *docType
	s.types[docType.ID] = &clone
	s.byName[key] = docType.ID
	return nil
}

func (s *InMemoryTypeStore) FindByID(_ context.Context, typeID id.DocumentTypeID) (*Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docType, ok := s.types[typeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *docType
	return &clone, nil
}

func (s *InMemoryTypeStore) List(_ context.Context) ([]*Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]*Type, 0, len(s.types))
	for _, t := range s.types {
		clone := *t
		types = append(types, &clone)
	}
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	return types, nil
}
