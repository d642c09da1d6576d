package domain

import "time"

// ArchiveAction is what the hygiene job did to an item.
type ArchiveAction string

// Archive actions.
const (
	ArchiveActionArchive ArchiveAction = "ARCHIVE"
	ArchiveActionTrash   ArchiveAction = "TRASH"
	ArchiveActionDelete  ArchiveAction = "DELETE"
)

// ArchivedItem records an item the hygiene jobs archived or deleted.
type ArchivedItem struct {
	ID               string            `json:"id"`
	OrganizationID   string            `json:"organization_id"`
	Source           Source            `json:"source"`
	ExternalID       string            `json:"external_id"`
	Name             string            `json:"name"`
	OriginalPath     string            `json:"original_path,omitempty"`
	ParentID         string            `json:"parent_id,omitempty"`
	MimeType         string            `json:"mime_type,omitempty"`
	OriginalMetadata map[string]string `json:"original_metadata,omitempty"`
	Action           ArchiveAction     `json:"action"`
	ArchivedAt       time.Time         `json:"archived_at"`
	RestoredAt       *time.Time        `json:"restored_at,omitempty"`
}

// IsRestored returns true once the item has been restored.
func (a *ArchivedItem) IsRestored() bool {
	return a.RestoredAt != nil
}

// RestoreCommand tells a connector which item to bring back.
type RestoreCommand struct {
	ExternalID       string
	Name             string
	OriginalPath     string
	ParentID         string
	MimeType         string
	OriginalMetadata map[string]string
	Action           ArchiveAction
	ArchivedAt       time.Time
}

// RestoreCommand builds the connector command for this item.
func (a *ArchivedItem) RestoreCommand() RestoreCommand {
	return RestoreCommand{
		ExternalID:       a.ExternalID,
		Name:             a.Name,
		OriginalPath:     a.OriginalPath,
		ParentID:         a.ParentID,
		MimeType:         a.MimeType,
		OriginalMetadata: a.OriginalMetadata,
		Action:           a.Action,
		ArchivedAt:       a.ArchivedAt,
	}
}

// Meta returns an original metadata value or "".
func (r RestoreCommand) Meta(key string) string {
	if r.OriginalMetadata == nil {
		return ""
	}
	return r.OriginalMetadata[key]
}
