package blockchain

import (
	"sort"

	"github.com/filecoin-project/go-state-types/big"
)

// Typed data definitions of the warm storage service.
const (
	eip712DomainType  = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	metadataEntryType = "MetadataEntry(string key,string value)"
	createDataSetType = "CreateDataSet(uint256 clientDataSetId,address payee,MetadataEntry[] metadata)" + metadataEntryType

	WarmStorageDomainName    = "FilecoinWarmStorageService"
	WarmStorageDomainVersion = "1"
)

// Domain is an EIP-712 signing domain.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract string
}

// Separator is hashStruct(EIP712Domain).
func (d Domain) Separator() ([]byte, error) {
	enc, err := EncodeArgs(
		Bytes32(Keccak256([]byte(eip712DomainType))),
		Bytes32(Keccak256([]byte(d.Name))),
		Bytes32(Keccak256([]byte(d.Version))),
		Uint64(d.ChainID),
		Address(d.VerifyingContract),
	)
	if err != nil {
		return nil, err
	}
	return Keccak256(enc), nil
}

// MetadataEntry is a key/value pair attached to a data set.
type MetadataEntry struct {
	Key   string
	Value string
}

// SortedMetadata turns a map into entries ordered by key.
func SortedMetadata(m map[string]string) []MetadataEntry {
	entries := make([]MetadataEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, MetadataEntry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// CreateDataSetDigest is the EIP-712 digest a payer signs to authorize a new data set.
func CreateDataSetDigest(d Domain, clientDataSetID big.Int, payee string, metadata []MetadataEntry) ([]byte, error) {
	var entryHashes []byte
	for _, e := range metadata {
		h, err := EncodeArgs(
			Bytes32(Keccak256([]byte(metadataEntryType))),
			Bytes32(Keccak256([]byte(e.Key))),
			Bytes32(Keccak256([]byte(e.Value))),
		)
		if err != nil {
			return nil, err
		}
		entryHashes = append(entryHashes, Keccak256(h)...)
	}

	structEnc, err := EncodeArgs(
		Bytes32(Keccak256([]byte(createDataSetType))),
		Uint256(clientDataSetID),
		Address(payee),
		Bytes32(Keccak256(entryHashes)),
	)
	if err != nil {
		return nil, err
	}

	sep, err := d.Separator()
	if err != nil {
		return nil, err
	}
	return Keccak256([]byte{0x19, 0x01}, sep, Keccak256(structEnc)), nil
}

// SignTyped signs an EIP-712 digest and returns R || S || V with V in {27, 28}.
func (k *Key) SignTyped(digest []byte) ([]byte, error) {
	sig, err := k.SignHash(digest)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// CreateDataSetExtraData is the ABI encoded payload handed to the record keeper:
// (address payer, uint256 clientDataSetId, string[] keys, string[] values, bytes signature).
func CreateDataSetExtraData(payer string, clientDataSetID big.Int, metadata []MetadataEntry, signature []byte) ([]byte, error) {
	keys := make(Strings, 0, len(metadata))
	values := make(Strings, 0, len(metadata))
	for _, e := range metadata {
		keys = append(keys, e.Key)
		values = append(values, e.Value)
	}
	return EncodeArgs(Address(payer), Uint256(clientDataSetID), keys, values, Bytes(signature))
}
