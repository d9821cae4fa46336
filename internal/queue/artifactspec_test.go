package queue

import (
	"encoding/json"
	"errors"
	"testing"

	"genbroker/internal/domain"
)

func raws(items ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(items))
	for i, s := range items {
		out[i] = json.RawMessage(s)
	}
	return out
}

func TestResolveArtifactDescriptorShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want ArtifactRef
	}{
		{
			name: "bare key string",
			raw:  `"a/1.png"`,
			want: ArtifactRef{Bucket: "default", Key: "a/1.png"},
		},
		{
			name: "nested s3 locator",
			raw:  `{"s3":{"bucket":"b","key":"a/1.png"}}`,
			want: ArtifactRef{Bucket: "b", Key: "a/1.png"},
		},
		{
			name: "nested locator wins over flat fields",
			raw:  `{"s3":{"bucket":"b","key":"k1"},"bucket":"other","key":"k2"}`,
			want: ArtifactRef{Bucket: "b", Key: "k1"},
		},
		{
			name: "flat bucket and key",
			raw:  `{"bucket":"b","key":"a/2.png"}`,
			want: ArtifactRef{Bucket: "b", Key: "a/2.png"},
		},
		{
			name: "flat key defaults bucket",
			raw:  `{"key":"a/3.png"}`,
			want: ArtifactRef{Bucket: "default", Key: "a/3.png"},
		},
		{
			name: "flat key wins over storage path",
			raw:  `{"key":"k","storagePath":"s3://x/y"}`,
			want: ArtifactRef{Bucket: "default", Key: "k"},
		},
		{
			name: "storage path with scheme",
			raw:  `{"storagePath":"s3://b/a/4.png"}`,
			want: ArtifactRef{Bucket: "b", Key: "a/4.png"},
		},
		{
			name: "storage path without scheme",
			raw:  `{"storagePath":"b/a/5.png"}`,
			want: ArtifactRef{Bucket: "b", Key: "a/5.png"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveArtifactDescriptor(json.RawMessage(tt.raw), "default")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveArtifactDescriptorRejects(t *testing.T) {
	bad := []string{
		`""`,
		`{}`,
		`{"s3":{"bucket":"b"}}`,
		`{"storagePath":"nokey"}`,
		`{"storagePath":"s3://bucketonly/"}`,
		`42`,
	}
	for _, raw := range bad {
		if _, err := resolveArtifactDescriptor(json.RawMessage(raw), "default"); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%s: want ErrInvalidInput, got %v", raw, err)
		}
	}
}

func TestResolveArtifactDescriptorsCollapsesDuplicates(t *testing.T) {
	refs, err := resolveArtifactDescriptors(raws(
		`{"bucket":"b","key":"a/1.png"}`,
		`{"bucket":"b","key":"a/1.png"}`,
		`"a/1.png"`,
		`{"s3":{"bucket":"b","key":"a/2.png"}}`,
	), "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []ArtifactRef{
		{Bucket: "b", Key: "a/1.png"},
		{Bucket: "b", Key: "a/2.png"},
	}
	if len(refs) != len(want) {
		t.Fatalf("got %d refs, want %d: %+v", len(refs), len(want), refs)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("ref %d: got %+v, want %+v", i, refs[i], want[i])
		}
	}
}

func TestResolveArtifactDescriptorsRejectsWholeList(t *testing.T) {
	if _, err := resolveArtifactDescriptors(raws(`"ok.png"`, `{}`), "b"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("one bad entry should reject the whole list, got %v", err)
	}
}
