// Package objectkey derives the bucket layout for uploaded videos and the
// audio tracks extracted from them.
package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Source returns the key an original upload lands at. The owner id is part
// of the path so ownership is visible from the key alone.
func Source(ownerID, videoID uuid.UUID, filename string) string {
	return fmt.Sprintf("users/%s/videos/%s/%s", ownerID, videoID, SanitizeFilename(filename))
}

// Audio returns the key the extracted track is published at. Derived from
// the video id only, so re-processing always lands on the same key.
func Audio(videoID uuid.UUID) string {
	return fmt.Sprintf("audio/%s.m4a", videoID)
}

// SanitizeFilename strips any path components a client may have smuggled
// into the filename. An empty or dot-only name falls back to "video".
func SanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "" || name == "." || name == ".." || name == "/" {
		return "video"
	}
	return name
}
