package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"genbroker/internal/domain"
)

// ArtifactRef is a resolved (bucket, key) pair.
type ArtifactRef struct {
	Bucket string
	Key    string
}

type s3Locator struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// artifactDescriptor covers the object shapes agents report artifacts in.
type artifactDescriptor struct {
	S3          *s3Locator `json:"s3,omitempty"`
	Bucket      string     `json:"bucket,omitempty"`
	Key         string     `json:"key,omitempty"`
	StoragePath string     `json:"storagePath,omitempty"`
}

// resolveArtifactDescriptors parses the heterogeneous descriptor list and
// collapses duplicate (bucket, key) pairs, preserving first-seen order. Any
// unparseable entry rejects the whole list.
func resolveArtifactDescriptors(raws []json.RawMessage, defaultBucket string) ([]ArtifactRef, error) {
	seen := make(map[ArtifactRef]struct{}, len(raws))
	refs := make([]ArtifactRef, 0, len(raws))
	for i, raw := range raws {
		ref, err := resolveArtifactDescriptor(raw, defaultBucket)
		if err != nil {
			return nil, fmt.Errorf("artifact %d: %w", i, err)
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs, nil
}

// resolveArtifactDescriptor resolves one descriptor to a (bucket, key) pair.
// Shapes are tried in a fixed precedence order: explicit nested S3 locator,
// direct bucket/key fields, a parseable storage path, then a bare key string.
func resolveArtifactDescriptor(raw json.RawMessage, defaultBucket string) (ArtifactRef, error) {
	var key string
	if err := json.Unmarshal(raw, &key); err == nil {
		if strings.TrimSpace(key) == "" {
			return ArtifactRef{}, fmt.Errorf("%w: empty artifact key", domain.ErrInvalidInput)
		}
		return ArtifactRef{Bucket: defaultBucket, Key: key}, nil
	}

	var desc artifactDescriptor
	if err := json.Unmarshal(raw, &desc); err != nil {
		return ArtifactRef{}, fmt.Errorf("%w: malformed artifact descriptor", domain.ErrInvalidInput)
	}

	switch {
	case desc.S3 != nil:
		if desc.S3.Bucket == "" || desc.S3.Key == "" {
			return ArtifactRef{}, fmt.Errorf("%w: incomplete s3 locator", domain.ErrInvalidInput)
		}
		return ArtifactRef{Bucket: desc.S3.Bucket, Key: desc.S3.Key}, nil
	case desc.Key != "":
		bucket := desc.Bucket
		if bucket == "" {
			bucket = defaultBucket
		}
		return ArtifactRef{Bucket: bucket, Key: desc.Key}, nil
	case desc.StoragePath != "":
		return parseStoragePath(desc.StoragePath)
	}
	return ArtifactRef{}, fmt.Errorf("%w: unparseable artifact descriptor", domain.ErrInvalidInput)
}

// parseStoragePath accepts "s3://bucket/key" or "bucket/key" forms.
func parseStoragePath(path string) (ArtifactRef, error) {
	trimmed := strings.TrimPrefix(path, "s3://")
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return ArtifactRef{}, fmt.Errorf("%w: unparseable storage path %q", domain.ErrInvalidInput, path)
	}
	return ArtifactRef{Bucket: bucket, Key: key}, nil
}
