package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
)

func TestObjectKeys(t *testing.T) {
	img := ProfileImageKey("doc-1", "png")
	if !strings.HasPrefix(img, "profile-images/doc-1/") || !strings.HasSuffix(img, ".png") {
		t.Fatalf("image key = %q", img)
	}
	if img == ProfileImageKey("doc-1", ".png") {
		t.Fatal("image keys must be unique per upload")
	}

	pdf := GeneratedPDFKey("doc-1")
	if !strings.HasPrefix(pdf, "generated-cvs/doc-1/") || !strings.HasSuffix(pdf, ".pdf") {
		t.Fatalf("pdf key = %q", pdf)
	}

	if !BelongsTo(img, "doc-1") || !BelongsTo(pdf, "doc-1") {
		t.Fatal("keys must belong to their document")
	}
	if BelongsTo(img, "doc-10") || BelongsTo("profile-images/doc-10/x.png", "doc-1") {
		t.Fatal("prefix match must stop at the id boundary")
	}
}

func TestErrorClassification(t *testing.T) {
	noKey := fmt.Errorf("get object: %w", minio.ErrorResponse{Code: "NoSuchKey"})
	noBucket := minio.ErrorResponse{Code: "NoSuchBucket"}

	if !IsNoSuchKey(noKey) {
		t.Fatal("expected NoSuchKey")
	}
	if IsNoSuchBucket(noKey) {
		t.Fatal("NoSuchKey is not NoSuchBucket")
	}
	if !IsNoSuchBucket(noBucket) {
		t.Fatal("expected NoSuchBucket")
	}
	if IsNoSuchKey(nil) || IsNoSuchKey(errors.New("connection reset")) {
		t.Fatal("unrelated errors must not match")
	}
}
