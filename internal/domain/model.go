package domain

import "time"

// ModelSource identifies where a model selection is resolved from.
type ModelSource string

const (
	ModelSourceCatalog    ModelSource = "catalog"
	ModelSourceConfigured ModelSource = "configured"
)

// ModelSelection is a base-model reference as submitted by a user.
type ModelSelection struct {
	ID     string      `json:"id"`
	Source ModelSource `json:"source"`
}

// LoRASelection is a LoRA reference with its blending strength.
type LoRASelection struct {
	ID       string      `json:"id"`
	Source   ModelSource `json:"source"`
	Strength float64     `json:"strength"`
}

// ResolvedModel is a selection resolved against the catalog or the configured list.
type ResolvedModel struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Source          ModelSource `json:"source"`
	StorageLocation string      `json:"storage_location"`
}

// ResolvedLoRA is a resolved LoRA selection.
type ResolvedLoRA struct {
	ResolvedModel
	Strength float64 `json:"strength"`
}

// CatalogModel is a catalog row for a base model or LoRA.
type CatalogModel struct {
	ID              string
	Name            string
	OwnerID         string
	Public          bool
	StorageLocation string
	CreatedAt       time.Time
}

// VisibleTo reports whether the viewer may use this model in a submission.
func (m *CatalogModel) VisibleTo(userID string, admin bool) bool {
	return m.Public || admin || m.OwnerID == userID
}

// ConfiguredModel is a statically configured model entry loaded at startup.
type ConfiguredModel struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	StorageLocation string `json:"storage_location"`
	LoRA            bool   `json:"lora,omitempty"`
}
