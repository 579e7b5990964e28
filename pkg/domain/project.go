package domain

import (
	"fmt"
	"time"
)

// Status はプロジェクトのライフサイクル状態です。
type Status string

const (
	StatusDraft      Status = "draft"
	StatusGenerating Status = "generating"
	StatusSaved      Status = "saved"
	StatusPublished  Status = "published"
)

// transitions は許可された状態遷移です。saved → draft は再編集のためだけに存在します。
var transitions = map[Status][]Status{
	StatusDraft:      {StatusGenerating},
	StatusGenerating: {StatusSaved},
	StatusSaved:      {StatusPublished, StatusDraft},
}

// Valid は s が既知の状態かどうかを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusGenerating, StatusSaved, StatusPublished:
		return true
	}
	return false
}

// ProjectState は1コレクションのライフサイクル記録です。
type ProjectState struct {
	ID              string           `json:"id"`
	OwnerAddress    string           `json:"owner_address"`
	Prompt          string           `json:"prompt"`
	Name            string           `json:"name"`
	Status          Status           `json:"status"`
	Config          GenerationConfig `json:"config"`
	Layers          Layers           `json:"layers"`
	PreviewImage    []byte           `json:"-"`
	ContractAddress string           `json:"contract_address,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CanTransition は現在の状態から to へ遷移できるかを返します。
func (p ProjectState) CanTransition(to Status) bool {
	for _, next := range transitions[p.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition は遷移を検証して状態を更新します。
func (p *ProjectState) Transition(to Status, now time.Time) error {
	if !p.CanTransition(to) {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("cannot move project %s from %s to %s", p.ID, p.Status, to)}
	}
	p.Status = to
	p.UpdatedAt = now
	return nil
}

// MintedAsset は公開時に記録される派生レコードです。ミント自体は扱いません。
type MintedAsset struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	TokenID      int       `json:"token_id"`
	Edition      int       `json:"edition"`
	Name         string    `json:"name"`
	DNA          string    `json:"dna"`
	ImageData    []byte    `json:"-"`
	MetadataJSON string    `json:"metadata"`
	CreatedAt    time.Time `json:"created_at"`
}
