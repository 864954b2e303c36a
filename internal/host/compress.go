package host

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// encodings in server preference order.
var encodings = []string{"br", "zstd", "gzip"}

// negotiateEncoding picks a content coding from an Accept-Encoding header,
// or "" for identity.
func negotiateEncoding(header string) string {
	if header == "" {
		return ""
	}
	q := map[string]float64{}
	wildcard := -1.0
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		weight := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				weight = f
			}
		}
		if name == "*" {
			wildcard = weight
			continue
		}
		q[name] = weight
	}
	for _, enc := range encodings {
		w, ok := q[enc]
		if !ok {
			w = wildcard
		}
		if w > 0 {
			return enc
		}
	}
	return ""
}

func newEncoder(enc string, w io.Writer) (io.WriteCloser, error) {
	switch enc {
	case "br":
		return brotli.NewWriterLevel(w, brotli.DefaultCompression), nil
	case "zstd":
		return zstd.NewWriter(w)
	default:
		return gzip.NewWriter(w), nil
	}
}

// compressBody encodes body with enc.
func compressBody(enc string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := newEncoder(enc, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(body); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
