package memory

import (
	"encoding/json"
	"fmt"
)

// Bucket names under which durable backends store snapshot payloads.
const (
	BucketCases     = "cases"
	BucketEvidence  = "evidence"
	BucketTransfers = "custody_transfers"
)

// Buckets lists every snapshot bucket in persist order.
var Buckets = []string{BucketCases, BucketEvidence, BucketTransfers}

// EncodeBuckets marshals each bucket of s to JSON.
func EncodeBuckets(s Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(Buckets))
	for _, bucket := range Buckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case BucketCases:
			data, err = json.Marshal(s.Cases)
		case BucketEvidence:
			data, err = json.Marshal(s.Evidence)
		case BucketTransfers:
			data, err = json.Marshal(s.Transfers)
		}
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", bucket, err)
		}
		out[bucket] = data
	}
	return out, nil
}

// DecodeBucket unmarshals payload into the matching field of s. Unknown
// buckets and empty payloads are ignored.
func DecodeBucket(s *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	var target any
	switch bucket {
	case BucketCases:
		target = &s.Cases
	case BucketEvidence:
		target = &s.Evidence
	case BucketTransfers:
		target = &s.Transfers
	default:
		return nil
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	return nil
}
