package synapse

import (
	"bytes"
	"encoding/hex"
	"io"

	"github.com/filecoin-project/go-commp-utils/v2/writer"
	commcid "github.com/filecoin-project/go-fil-commcid"
	"github.com/filecoin-project/go-padreader"
	"github.com/ipfs/go-cid"
	"golang.org/x/xerrors"
)

// Piece size bounds accepted by storage providers.
const (
	MinUploadSize = 127
	MaxUploadSize = 200 * 1024 * 1024
)

var (
	ErrPieceTooSmall = xerrors.Errorf("piece is smaller than %d bytes", MinUploadSize)
	ErrPieceTooLarge = xerrors.Errorf("piece is larger than %d bytes", MaxUploadSize)
)

// CheckSize enforces the upload bounds.
func CheckSize(size int64) error {
	switch {
	case size < MinUploadSize:
		return ErrPieceTooSmall
	case size > MaxUploadSize:
		return ErrPieceTooLarge
	}
	return nil
}

// PaddedPieceSize is the size the piece occupies once Fr32 padded.
func PaddedPieceSize(size int64) uint64 {
	return uint64(padreader.PaddedSize(uint64(size)).Padded())
}

// ComputePieceCID returns the CommP piece CID of data.
func ComputePieceCID(data []byte) (cid.Cid, error) {
	w := &writer.Writer{}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return cid.Undef, xerrors.Errorf("hashing piece: %w", err)
	}
	sum, err := w.Sum()
	if err != nil {
		return cid.Undef, xerrors.Errorf("computing piece commitment: %w", err)
	}
	return sum.PieceCID, nil
}

// pieceDigest is the hex CommP digest used in provider piece checks.
func pieceDigest(c cid.Cid) (string, error) {
	commP, err := commcid.CIDToPieceCommitmentV1(c)
	if err != nil {
		return "", xerrors.Errorf("not a piece commitment CID: %w", err)
	}
	return hex.EncodeToString(commP), nil
}

// ParsePieceCID parses and validates a piece commitment CID.
func ParsePieceCID(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, xerrors.Errorf("invalid piece CID %q: %w", s, err)
	}
	if _, err := commcid.CIDToPieceCommitmentV1(c); err != nil {
		return cid.Undef, xerrors.Errorf("%s is not a piece CID: %w", s, err)
	}
	return c, nil
}
