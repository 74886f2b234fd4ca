package apiclient

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/andybalholm/brotli"
)

// acceptEncoding 传输层关闭了自动解压，由这里统一声明与处理
const acceptEncoding = "br, gzip, deflate"

// decompressBody 根据 Content-Encoding 解压响应体
func decompressBody(ctx context.Context, contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))
	if encoding == "" || encoding == "identity" || len(body) == 0 {
		return body, nil
	}

	var reader io.Reader
	switch encoding {
	case "gzip":
		gzipReader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case "deflate":
		deflateReader := flate.NewReader(bytes.NewReader(body))
		defer deflateReader.Close()
		reader = deflateReader
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	default:
		// 未知编码，记录警告但返回原始内容
		slog.WarnContext(ctx, fmt.Sprintf("⚠️ [压缩] 未知的编码方式: %s", encoding))
		return body, nil
	}

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s content: %w", encoding, err)
	}

	slog.DebugContext(ctx, fmt.Sprintf("🗜️ [解压] %s: %d → %d字节", encoding, len(body), len(decompressed)))
	return decompressed, nil
}
