package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/shouni/go-trait-kit/pkg/domain"
)

// SQLiteStore は SQLite による Store 実装です。
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLite はデータベースに接続し、マイグレーションを適用します。
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// レイヤーの追記を直列化するため接続は1本に絞る
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &SQLiteStore{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, projectID, category string, variation int, description string, imageData []byte) (domain.TraitAsset, error) {
	data, mimeType, err := normalizeForSave(category, imageData)
	if err != nil {
		return domain.TraitAsset{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.TraitAsset{}, fmt.Errorf("begin save tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM projects WHERE id = ?", projectID).Scan(&exists); err != nil {
		return domain.TraitAsset{}, fmt.Errorf("check project: %w", err)
	}
	if exists == 0 {
		return domain.TraitAsset{}, &domain.NotFoundError{Resource: "project", ID: projectID}
	}

	key := strings.ToLower(category)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO layers (project_id, name, name_key) VALUES (?, ?, ?)
         ON CONFLICT(project_id, name_key) DO NOTHING`,
		projectID, category, key,
	); err != nil {
		return domain.TraitAsset{}, fmt.Errorf("ensure layer: %w", err)
	}

	var (
		layerID   int64
		layerName string
	)
	if err := tx.QueryRowContext(ctx,
		"SELECT id, name FROM layers WHERE project_id = ? AND name_key = ?", projectID, key,
	).Scan(&layerID, &layerName); err != nil {
		return domain.TraitAsset{}, fmt.Errorf("load layer: %w", err)
	}

	asset := domain.TraitAsset{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Category:    layerName,
		Variation:   variation,
		Description: description,
		ImageData:   data,
		MimeType:    mimeType,
		CreatedAt:   s.now(),
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO traits (id, layer_id, project_id, category, variation, description, image_data, mime_type, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID, layerID, projectID, asset.Category, asset.Variation, asset.Description, asset.ImageData, asset.MimeType,
		asset.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return domain.TraitAsset{}, fmt.Errorf("insert trait: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.TraitAsset{}, fmt.Errorf("commit save: %w", err)
	}
	return asset.Clone(), nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.TraitAsset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, category, variation, description, image_data, mime_type, created_at
         FROM traits WHERE id = ?`, id)
	asset, err := scanTrait(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TraitAsset{}, &domain.NotFoundError{Resource: "trait", ID: id}
	}
	if err != nil {
		return domain.TraitAsset{}, fmt.Errorf("get trait: %w", err)
	}
	return asset, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrait(row rowScanner) (domain.TraitAsset, error) {
	var (
		asset   domain.TraitAsset
		created string
	)
	if err := row.Scan(&asset.ID, &asset.ProjectID, &asset.Category, &asset.Variation, &asset.Description, &asset.ImageData, &asset.MimeType, &created); err != nil {
		return domain.TraitAsset{}, err
	}
	asset.CreatedAt = parseTime(created)
	return asset, nil
}

func (s *SQLiteStore) CreateProject(ctx context.Context, p domain.ProjectState) (domain.ProjectState, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = domain.StatusDraft
	}
	now := s.now()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Layers = nil

	cfgJSON, err := json.Marshal(p.Config)
	if err != nil {
		return domain.ProjectState{}, fmt.Errorf("marshal config: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, owner_address, prompt, name, status, config_json, preview_image, contract_address, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OwnerAddress, p.Prompt, p.Name, string(p.Status), string(cfgJSON),
		nullableBytes(p.PreviewImage), nullableString(p.ContractAddress),
		p.CreatedAt.Format(time.RFC3339Nano), p.UpdatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return domain.ProjectState{}, fmt.Errorf("insert project: %w", err)
	}
	return s.GetProject(ctx, p.ID)
}

func (s *SQLiteStore) GetProject(ctx context.Context, id string) (domain.ProjectState, error) {
	var (
		p          domain.ProjectState
		status     string
		cfgJSON    string
		contract   sql.NullString
		created    string
		updated    string
		previewRaw []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_address, prompt, name, status, config_json, preview_image, contract_address, created_at, updated_at
         FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.OwnerAddress, &p.Prompt, &p.Name, &status, &cfgJSON, &previewRaw, &contract, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProjectState{}, &domain.NotFoundError{Resource: "project", ID: id}
	}
	if err != nil {
		return domain.ProjectState{}, fmt.Errorf("get project: %w", err)
	}

	p.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(cfgJSON), &p.Config); err != nil {
		return domain.ProjectState{}, fmt.Errorf("decode project config: %w", err)
	}
	p.PreviewImage = previewRaw
	p.ContractAddress = contract.String
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)

	layers, err := s.loadLayers(ctx, id)
	if err != nil {
		return domain.ProjectState{}, err
	}
	p.Layers = layers
	return p, nil
}

func (s *SQLiteStore) loadLayers(ctx context.Context, projectID string) (domain.Layers, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT l.name, t.id, t.project_id, t.category, t.variation, t.description, t.image_data, t.mime_type, t.created_at
         FROM layers l JOIN traits t ON t.layer_id = l.id
         WHERE l.project_id = ?
         ORDER BY l.id, t.seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query layers: %w", err)
	}
	defer rows.Close()

	var layers domain.Layers
	for rows.Next() {
		var (
			layerName string
			asset     domain.TraitAsset
			created   string
		)
		if err := rows.Scan(&layerName, &asset.ID, &asset.ProjectID, &asset.Category, &asset.Variation, &asset.Description, &asset.ImageData, &asset.MimeType, &created); err != nil {
			return nil, fmt.Errorf("scan layer trait: %w", err)
		}
		asset.CreatedAt = parseTime(created)
		if n := len(layers); n > 0 && layers[n-1].Name == layerName {
			layers[n-1].Traits = append(layers[n-1].Traits, asset)
			continue
		}
		layers = append(layers, domain.Layer{Name: layerName, Traits: []domain.TraitAsset{asset}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate layers: %w", err)
	}
	return layers, nil
}

func (s *SQLiteStore) UpdateProject(ctx context.Context, p domain.ProjectState) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = s.now()
	}
	cfgJSON, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET owner_address = ?, prompt = ?, name = ?, status = ?, config_json = ?,
             preview_image = ?, contract_address = ?, updated_at = ?
         WHERE id = ?`,
		p.OwnerAddress, p.Prompt, p.Name, string(p.Status), string(cfgJSON),
		nullableBytes(p.PreviewImage), nullableString(p.ContractAddress), p.UpdatedAt.Format(time.RFC3339Nano),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFoundError{Resource: "project", ID: p.ID}
	}
	return nil
}

// sqlExecer は *sql.DB と *sql.Tx の共通部分です。
type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) CreateMinted(ctx context.Context, a domain.MintedAsset) (domain.MintedAsset, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = s.now()
	if err := insertMinted(ctx, s.db, a); err != nil {
		return domain.MintedAsset{}, err
	}
	return a, nil
}

func (s *SQLiteStore) CreateMintedBatch(ctx context.Context, assets []domain.MintedAsset) ([]domain.MintedAsset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mint tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now()
	out := make([]domain.MintedAsset, 0, len(assets))
	for _, a := range assets {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.CreatedAt = now
		if err := insertMinted(ctx, tx, a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mint batch: %w", err)
	}
	return out, nil
}

func insertMinted(ctx context.Context, db sqlExecer, a domain.MintedAsset) error {
	var exists int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(1) FROM projects WHERE id = ?", a.ProjectID).Scan(&exists); err != nil {
		return fmt.Errorf("check project: %w", err)
	}
	if exists == 0 {
		return &domain.NotFoundError{Resource: "project", ID: a.ProjectID}
	}

	var taken int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM minted_assets WHERE project_id = ? AND token_id = ?", a.ProjectID, a.TokenID,
	).Scan(&taken); err != nil {
		return fmt.Errorf("check token: %w", err)
	}
	if taken > 0 {
		return duplicateTokenError(a)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO minted_assets (id, project_id, token_id, edition, name, dna, image_data, metadata_json, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProjectID, a.TokenID, a.Edition, a.Name, a.DNA, nullableBytes(a.ImageData), a.MetadataJSON,
		a.CreatedAt.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert minted asset: %w", err)
	}
	return nil
}

const mintedColumns = "id, project_id, token_id, edition, name, dna, image_data, metadata_json, created_at"

func scanMinted(row rowScanner) (domain.MintedAsset, error) {
	var (
		a       domain.MintedAsset
		created string
	)
	if err := row.Scan(&a.ID, &a.ProjectID, &a.TokenID, &a.Edition, &a.Name, &a.DNA, &a.ImageData, &a.MetadataJSON, &created); err != nil {
		return domain.MintedAsset{}, err
	}
	a.CreatedAt = parseTime(created)
	return a, nil
}

func (s *SQLiteStore) GetMinted(ctx context.Context, id string) (domain.MintedAsset, error) {
	a, err := scanMinted(s.db.QueryRowContext(ctx, "SELECT "+mintedColumns+" FROM minted_assets WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MintedAsset{}, &domain.NotFoundError{Resource: "minted asset", ID: id}
	}
	if err != nil {
		return domain.MintedAsset{}, fmt.Errorf("get minted asset: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) UpdateMinted(ctx context.Context, a domain.MintedAsset) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE minted_assets SET token_id = ?, edition = ?, name = ?, dna = ?, image_data = ?, metadata_json = ?
         WHERE id = ?`,
		a.TokenID, a.Edition, a.Name, a.DNA, nullableBytes(a.ImageData), a.MetadataJSON, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update minted asset: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &domain.NotFoundError{Resource: "minted asset", ID: a.ID}
	}
	return nil
}

func (s *SQLiteStore) ListMinted(ctx context.Context, projectID string) ([]domain.MintedAsset, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+mintedColumns+" FROM minted_assets WHERE project_id = ? ORDER BY token_id", projectID)
	if err != nil {
		return nil, fmt.Errorf("list minted assets: %w", err)
	}
	defer rows.Close()

	var out []domain.MintedAsset
	for rows.Next() {
		a, err := scanMinted(rows)
		if err != nil {
			return nil, fmt.Errorf("scan minted asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableBytes(v []byte) any {
	if len(v) == 0 {
		return nil
	}
	return v
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
