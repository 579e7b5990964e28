package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// MemoryStore はプロセス内で完結する Store 実装です。
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]domain.ProjectState
	layers   map[string][]memoryLayer // projectID -> 初出順のレイヤー
	traits   map[string]domain.TraitAsset
	minted   map[string]domain.MintedAsset
	now      func() time.Time
}

type memoryLayer struct {
	name     string
	traitIDs []string
}

// NewMemoryStore は空の MemoryStore を返します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects: make(map[string]domain.ProjectState),
		layers:   make(map[string][]memoryLayer),
		traits:   make(map[string]domain.TraitAsset),
		minted:   make(map[string]domain.MintedAsset),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Save(ctx context.Context, projectID, category string, variation int, description string, imageData []byte) (domain.TraitAsset, error) {
	if err := ctx.Err(); err != nil {
		return domain.TraitAsset{}, err
	}
	data, mimeType, err := normalizeForSave(category, imageData)
	if err != nil {
		return domain.TraitAsset{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[projectID]; !ok {
		return domain.TraitAsset{}, &domain.NotFoundError{Resource: "project", ID: projectID}
	}

	asset := domain.TraitAsset{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Category:    category,
		Variation:   variation,
		Description: description,
		ImageData:   append([]byte(nil), data...),
		MimeType:    mimeType,
		CreatedAt:   s.now(),
	}
	s.traits[asset.ID] = asset

	layers := s.layers[projectID]
	for i := range layers {
		if strings.EqualFold(layers[i].name, category) {
			layers[i].traitIDs = append(layers[i].traitIDs, asset.ID)
			asset.Category = layers[i].name
			s.traits[asset.ID] = asset
			return asset.Clone(), nil
		}
	}
	s.layers[projectID] = append(layers, memoryLayer{name: category, traitIDs: []string{asset.ID}})
	return asset.Clone(), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (domain.TraitAsset, error) {
	if err := ctx.Err(); err != nil {
		return domain.TraitAsset{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.traits[id]
	if !ok {
		return domain.TraitAsset{}, &domain.NotFoundError{Resource: "trait", ID: id}
	}
	return asset.Clone(), nil
}

func (s *MemoryStore) CreateProject(ctx context.Context, p domain.ProjectState) (domain.ProjectState, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProjectState{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.StatusDraft
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Layers = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.projects[p.ID]; exists {
		return domain.ProjectState{}, &domain.ValidationError{Field: "project", Reason: "duplicate id " + p.ID}
	}
	p.PreviewImage = cloneBytes(p.PreviewImage)
	s.projects[p.ID] = p
	return s.assembleLocked(p), nil
}

func (s *MemoryStore) GetProject(ctx context.Context, id string) (domain.ProjectState, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProjectState{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return domain.ProjectState{}, &domain.NotFoundError{Resource: "project", ID: id}
	}
	return s.assembleLocked(p), nil
}

func (s *MemoryStore) UpdateProject(ctx context.Context, p domain.ProjectState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.projects[p.ID]
	if !ok {
		return &domain.NotFoundError{Resource: "project", ID: p.ID}
	}
	p.CreatedAt = current.CreatedAt
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	p.Layers = nil
	p.PreviewImage = cloneBytes(p.PreviewImage)
	s.projects[p.ID] = p
	return nil
}

// assembleLocked はトレイト表からプロジェクトの Layers を組み立てます。呼び出し側でロックを保持していること。
func (s *MemoryStore) assembleLocked(p domain.ProjectState) domain.ProjectState {
	out := p
	out.PreviewImage = cloneBytes(p.PreviewImage)
	out.Layers = nil
	for _, l := range s.layers[p.ID] {
		layer := domain.Layer{Name: l.name, Traits: make([]domain.TraitAsset, 0, len(l.traitIDs))}
		for _, id := range l.traitIDs {
			layer.Traits = append(layer.Traits, s.traits[id].Clone())
		}
		out.Layers = append(out.Layers, layer)
	}
	return out
}

func (s *MemoryStore) CreateMinted(ctx context.Context, a domain.MintedAsset) (domain.MintedAsset, error) {
	if err := ctx.Err(); err != nil {
		return domain.MintedAsset{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = s.now()
	a.ImageData = cloneBytes(a.ImageData)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMintedLocked(a, nil); err != nil {
		return domain.MintedAsset{}, err
	}
	s.minted[a.ID] = a
	return a, nil
}

func (s *MemoryStore) CreateMintedBatch(ctx context.Context, assets []domain.MintedAsset) ([]domain.MintedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.MintedAsset, len(assets))
	now := s.now()
	for i, a := range assets {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.CreatedAt = now
		a.ImageData = cloneBytes(a.ImageData)
		out[i] = a
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pending := make(map[string]bool, len(out))
	for _, a := range out {
		if err := s.checkMintedLocked(a, pending); err != nil {
			return nil, err
		}
		pending[mintedKey(a.ProjectID, a.TokenID)] = true
	}
	for _, a := range out {
		s.minted[a.ID] = a
	}
	return out, nil
}

// checkMintedLocked は s.mu を保持した状態で呼びます。pending はバッチ内で先に検証した token です。
func (s *MemoryStore) checkMintedLocked(a domain.MintedAsset, pending map[string]bool) error {
	if _, ok := s.projects[a.ProjectID]; !ok {
		return &domain.NotFoundError{Resource: "project", ID: a.ProjectID}
	}
	key := mintedKey(a.ProjectID, a.TokenID)
	if pending[key] {
		return duplicateTokenError(a)
	}
	for _, m := range s.minted {
		if mintedKey(m.ProjectID, m.TokenID) == key {
			return duplicateTokenError(a)
		}
	}
	return nil
}

func mintedKey(projectID string, tokenID int) string {
	return projectID + "#" + strconv.Itoa(tokenID)
}

func (s *MemoryStore) GetMinted(ctx context.Context, id string) (domain.MintedAsset, error) {
	if err := ctx.Err(); err != nil {
		return domain.MintedAsset{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.minted[id]
	if !ok {
		return domain.MintedAsset{}, &domain.NotFoundError{Resource: "minted asset", ID: id}
	}
	a.ImageData = cloneBytes(a.ImageData)
	return a, nil
}

func (s *MemoryStore) UpdateMinted(ctx context.Context, a domain.MintedAsset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.minted[a.ID]
	if !ok {
		return &domain.NotFoundError{Resource: "minted asset", ID: a.ID}
	}
	a.CreatedAt = current.CreatedAt
	a.ImageData = cloneBytes(a.ImageData)
	s.minted[a.ID] = a
	return nil
}

func (s *MemoryStore) ListMinted(ctx context.Context, projectID string) ([]domain.MintedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.MintedAsset
	for _, a := range s.minted {
		if a.ProjectID == projectID {
			a.ImageData = cloneBytes(a.ImageData)
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out, nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
