package models

import (
	"context"
	"io"
)

// UploadResult describes a piece accepted by a storage provider.
type UploadResult struct {
	PieceCID string `json:"piece_cid"`
	Size     int64  `json:"size"`
	Provider string `json:"provider"`
}

// DataSet is a proof set created on a storage provider.
type DataSet struct {
	ID       uint64            `json:"id"`
	TxHash   string            `json:"tx_hash"`
	Provider string            `json:"provider"`
	Metadata map[string]string `json:"metadata"`
}

// StorageService represents a storage provider session.
type StorageService interface {
	Upload(ctx context.Context, r io.Reader, size int64) (*UploadResult, error)
	Download(ctx context.Context, pieceCID string) ([]byte, error)
	CreateDataSet(ctx context.Context, metadata map[string]string) (*DataSet, error)
}
