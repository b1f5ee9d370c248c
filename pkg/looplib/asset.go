package looplib

import (
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/signloop/signloop/pkg/logger"
)

// ContentKind groups asset filetypes by how the display renders them.
type ContentKind string

const (
	KindImage ContentKind = "image"
	KindVideo ContentKind = "video"
	KindWeb   ContentKind = "web"
)

// Asset is one playlist entry as delivered by the content endpoint.
// Duration and Order are already parsed from their wire string form.
type Asset struct {
	Source   string      // remote media URL, or page URI for web content
	Type     string      // normalized filetype token (e.g. "jpg", "url")
	Kind     ContentKind // derived from Type and Source, empty if unsupported
	Name     string
	Duration int // seconds the asset stays on screen
	Order    int // playing order from the payload, lower plays first
}

// LocalAsset is an Asset resolved to a playable location. For image and
// video kinds Path is a file inside the cache directory; web kinds play
// straight from their source URI.
type LocalAsset struct {
	Asset
	Path string
}

var imageTypes = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "bmp": {},
	"webp": {}, "svg": {}, "image": {},
}

var videoTypes = map[string]struct{}{
	"mp4": {}, "m4v": {}, "webm": {}, "mov": {}, "avi": {},
	"mkv": {}, "mpg": {}, "mpeg": {}, "video": {},
}

var webTypes = map[string]struct{}{
	"url": {}, "html": {}, "stream": {}, "web": {},
}

// Hosts whose content only plays through an embedded page, never from a file.
var streamingHosts = []string{
	"youtube.com",
	"youtu.be",
	"vimeo.com",
	"twitch.tv",
}

// normalizeType lowercases a filetype token and strips a leading dot,
// so ".JPG", "jpg" and "JPG" all classify the same way.
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.TrimPrefix(t, ".")
}

// classifyAsset derives the ContentKind from the declared filetype and the
// source URL. Streaming-platform URLs are always web content regardless of
// the declared type. An empty result means the asset is unsupported.
func classifyAsset(source, filetype string) ContentKind {
	if isStreamingSource(source) {
		return KindWeb
	}
	t := normalizeType(filetype)
	if t == "" {
		// Fall back to the extension of the URL path.
		if u, err := url.Parse(source); err == nil {
			t = normalizeType(path.Ext(u.Path))
		}
	}
	if _, ok := webTypes[t]; ok {
		return KindWeb
	}
	if _, ok := imageTypes[t]; ok {
		return KindImage
	}
	if _, ok := videoTypes[t]; ok {
		return KindVideo
	}
	return ""
}

// isStreamingSource reports whether the URL points at a known streaming
// platform. Matches the registered host and any subdomain of it.
func isStreamingSource(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, sh := range streamingHosts {
		if host == sh || strings.HasSuffix(host, "."+sh) {
			return true
		}
	}
	return false
}

// FilterPlayable drops assets that cannot be played (missing source,
// non-positive duration, unsupported type) and returns the survivors
// sorted by playing order. The sort is stable, so assets sharing an order
// keep their payload position. Dropped assets are logged, never fatal.
func FilterPlayable(assets []Asset, lg logger.Logger) []Asset {
	out := make([]Asset, 0, len(assets))
	for _, a := range assets {
		if a.Source == "" {
			lg.Warning("dropping asset %q: missing filepath", a.Name)
			continue
		}
		if a.Duration <= 0 {
			lg.Warning("dropping asset %q: non-positive duration", a.Name)
			continue
		}
		if a.Kind == "" {
			lg.Warning("dropping asset %q: %s (type %q)", a.Name, ErrUnsupportedType.Error(), a.Type)
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Order < out[j].Order
	})
	return out
}

// assetEqual compares two assets on the fields that matter for change
// detection. Kind is derived and therefore not compared.
func assetEqual(a, b Asset) bool {
	return a.Source == b.Source &&
		a.Type == b.Type &&
		a.Duration == b.Duration &&
		a.Order == b.Order &&
		a.Name == b.Name
}

// AssetsEqual reports whether two asset lists are element-wise equal on
// the fields that matter for change detection.
func AssetsEqual(a, b []Asset) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !assetEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// LocalAssetsEqual reports whether two resolved programs are element-wise
// equal, including the local paths the display will be handed.
func LocalAssetsEqual(a, b []LocalAsset) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Path != b[i].Path ||
			a[i].Source != b[i].Source ||
			a[i].Type != b[i].Type ||
			a[i].Duration != b[i].Duration ||
			a[i].Order != b[i].Order ||
			a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}
