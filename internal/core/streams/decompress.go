package streams

import (
	"bufio"
	"bytes"
	"io"

	perr "warcdex/internal/platform/errors"
	"warcdex/internal/platform/logger"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Decompress reverses content-encoding on rc
//
//	"gzip", "x-gzip"   gzip
//	"br"               brotli
//	"", "identity"     unchanged
//	anything else      unchanged, logged
//	Absent             gzip when the stream starts with the gzip magic, else unchanged
//
// Brotli has no magic number so it is only used when named. On error the caller
// still owns rc.
func Decompress(rc io.ReadCloser, hint Hint) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	plain := readCloser{Reader: br, c: rc}

	if !hint.Set() {
		head, _ := br.Peek(len(gzipMagic))
		if bytes.Equal(head, gzipMagic) {
			return gunzip(br, rc)
		}
		return plain, nil
	}

	switch v := hint.Value(); v {
	case "", "identity":
		return plain, nil
	case "gzip", "x-gzip":
		return gunzip(br, rc)
	case "br":
		return readCloser{Reader: brotli.NewReader(br), c: rc}, nil
	default:
		logger.Named("streams").Warn().Str("content_encoding", v).Msg("unsupported content encoding, passing through")
		return plain, nil
	}
}

// Prepare removes transfer framing then content coding, in that order
func Prepare(rc io.ReadCloser, transfer, content Hint) (io.ReadCloser, error) {
	return Decompress(Dechunk(rc, transfer), content)
}

type gzipReadCloser struct {
	*gzip.Reader
	src io.Closer
}

func (g gzipReadCloser) Close() error {
	zerr := g.Reader.Close()
	if err := g.src.Close(); err != nil {
		return err
	}
	return zerr
}

func gunzip(br *bufio.Reader, src io.Closer) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeCorrupt, "gzip header")
	}
	return gzipReadCloser{Reader: zr, src: src}, nil
}
