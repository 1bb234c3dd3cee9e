package fetch

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// platformDirs maps a platform name to its directory under the content root.
var platformDirs = map[string]string{
	"ios":     "ios/",
	"android": "Android/",
	"windows": "windows/",
	"webgl":   "webgl/",
	"osx":     "osx/",
	"linux":   "linux/",
}

// PlatformBaseURL returns the platform-specific content base, always ending in '/'.
func PlatformBaseURL(root, platform string) (string, error) {
	dir, ok := platformDirs[strings.ToLower(platform)]
	if !ok {
		return "", fmt.Errorf("unsupported bundle platform: %q", platform)
	}
	if _, err := url.Parse(root); err != nil {
		return "", fmt.Errorf("content root: %w", err)
	}
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return root + dir, nil
}

// BundleURL builds the versioned URL of a bundle under base.
func BundleURL(base, name string, version int) string {
	return base + url.PathEscape(name) + "?v=" + strconv.Itoa(version)
}
