package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	profileImagePrefix = "profile-images"
	generatedCVPrefix  = "generated-cvs"
)

// ProfileImageKey 为一份简历的新头像生成对象键，每次上传都是新键。
func ProfileImageKey(publicID, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s/%s/%s%s", profileImagePrefix, publicID, uuid.NewString(), ext)
}

// GeneratedPDFKey 为一次渲染生成对象键。
func GeneratedPDFKey(publicID string) string {
	return fmt.Sprintf("%s/%s/%s.pdf", generatedCVPrefix, publicID, uuid.NewString())
}

// CVPrefixes 返回一份简历在 Bucket 中占用的全部前缀，删除简历时逐个清理。
func CVPrefixes(publicID string) []string {
	return []string{
		fmt.Sprintf("%s/%s/", profileImagePrefix, publicID),
		fmt.Sprintf("%s/%s/", generatedCVPrefix, publicID),
	}
}

// BelongsTo 判断对象键是否位于某份简历的前缀下。
func BelongsTo(objectKey, publicID string) bool {
	for _, prefix := range CVPrefixes(publicID) {
		if strings.HasPrefix(objectKey, prefix) {
			return true
		}
	}
	return false
}
