package server

import (
	"diskuto/backend"
)

// itemDTO is the JSON shape of one item in a list response. ItemBytes is
// []byte, which encoding/json base64-encodes automatically.
type itemDTO struct {
	User        string `json:"user_id"`
	Signature   string `json:"signature"`
	TimestampMs int64  `json:"timestamp_ms_utc"`
	ItemBytes   []byte `json:"item_bytes"`
}

type itemDisplayDTO struct {
	itemDTO
	DisplayName string `json:"display_name"`
}

type pageDTO[T any] struct {
	Items   []T  `json:"items"`
	HasMore bool `json:"more"`
}

func toItemDTO(r backend.ItemRow) itemDTO {
	return itemDTO{
		User:        r.User.String(),
		Signature:   r.Signature.String(),
		TimestampMs: r.Timestamp.UnixUTCMillis,
		ItemBytes:   r.ItemBytes,
	}
}

func toItemDisplayDTO(r backend.ItemDisplayRow) itemDisplayDTO {
	return itemDisplayDTO{itemDTO: toItemDTO(r.Item), DisplayName: r.DisplayName}
}
