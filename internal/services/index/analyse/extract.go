package analyse

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"strings"

	"warcdex/internal/adapters/ingest/warc"
	"warcdex/internal/core/hashcache"
	"warcdex/internal/core/normalize"
	"warcdex/internal/core/streams"
	perr "warcdex/internal/platform/errors"
	"warcdex/internal/services/index/domain"

	"github.com/gabriel-vasile/mimetype"
)

const (
	ffbLen      = 4
	sniffLen    = 3072
	octetStream = "application/octet-stream"
)

// DefaultTypes are the record types indexed when none are configured
var DefaultTypes = []warc.Type{warc.TypeResponse, warc.TypeResource, warc.TypeRevisit}

// ExtractorOptions tune an Extractor
type ExtractorOptions struct {
	Types      []warc.Type // record types to index, DefaultTypes when empty
	MaxAnalyse int64       // prepared bytes handed to analysers, 0 means 10 MiB
}

// Extractor is the record to Result step used by the index worker
// It parses the captured HTTP head, spools and hashes the payload, removes transfer
// and content coding and hands the result to the analyser registered for its type.
type Extractor struct {
	cache *hashcache.Cache
	reg   *Registry
	types map[warc.Type]bool
	max   int64
}

var _ domain.Extractor = (*Extractor)(nil)

// NewExtractor wires a cache and registry together
func NewExtractor(cache *hashcache.Cache, reg *Registry, opt ExtractorOptions) *Extractor {
	types := opt.Types
	if len(types) == 0 {
		types = DefaultTypes
	}
	set := make(map[warc.Type]bool, len(types))
	for _, t := range types {
		set[t] = true
	}
	if opt.MaxAnalyse <= 0 {
		opt.MaxAnalyse = 10 << 20
	}
	if reg == nil {
		reg = NewRegistry()
	}
	return &Extractor{cache: cache, reg: reg, types: set, max: opt.MaxAnalyse}
}

// Extract implements domain.Extractor
// Record types outside the configured set yield (nil, nil). A digest mismatch still
// yields a complete Result together with an ErrorCodeIntegrity error.
func (e *Extractor) Extract(ctx context.Context, key string, rec *warc.Record) (*domain.Result, error) {
	h := &rec.Header
	if !e.types[h.Type] {
		return nil, nil
	}
	res := domain.NewResult(key, h)

	body := rec.Payload
	length := h.ContentLength
	var head *warc.HTTPHead
	transfer, content := streams.Absent, streams.Absent
	declared := h.ContentType

	if h.IsHTTP() && (h.Type == warc.TypeResponse || h.Type == warc.TypeRevisit) {
		br := bufio.NewReader(io.LimitReader(rec.Payload, length))
		hd, err := warc.ReadHTTPHead(br)
		if err != nil {
			res.AddParseError(err)
			return res, err
		}
		head = hd
		res.Status = hd.Status
		declared = hd.ContentType()
		if hd.Status >= 300 && hd.Status < 400 {
			if loc, ok := hd.Get("Location"); ok {
				res.Redirect = loc
			}
		}
		transfer = streams.HeaderIf(hd.Get("Transfer-Encoding"))
		content = streams.HeaderIf(hd.Get("Content-Encoding"))
		if content.Set() {
			res.Encoding = content.Value()
		}
		body = br
		length = max(length-hd.Size, 0)
	}
	res.DeclaredType = normalize.MediaType(declared)

	p, err := e.cache.Load(ctx, body, hashcache.Meta{
		Length:         length,
		RecordType:     string(h.Type),
		DeclaredDigest: h.PayloadDigest,
	})
	defer func() { _ = p.Release() }()
	res.Digest = p.Digest()
	res.Truncated = p.Truncated() || h.Truncated != ""
	res.Size = p.Size()
	if err != nil && p.Failed() {
		res.AddParseError(err)
		return res, err
	}
	// an integrity fault is kept and reported once the rest of the record is indexed
	integrity := err
	if integrity != nil {
		res.AddParseError(integrity)
	}

	if h.Type == warc.TypeRevisit || p.Size() == 0 {
		return res, integrity
	}

	if err := e.analyse(ctx, res, h, head, p, transfer, content, declared); err != nil {
		res.AddParseError(err)
		if integrity == nil {
			return res, err
		}
	}
	return res, integrity
}

func (e *Extractor) analyse(
	ctx context.Context,
	res *domain.Result,
	h *warc.Header,
	head *warc.HTTPHead,
	p *hashcache.Payload,
	transfer, content streams.Hint,
	declared string,
) error {
	rc, err := p.Open()
	if err != nil {
		return err
	}
	prepared, err := streams.Prepare(rc, transfer, content)
	if err != nil {
		_ = rc.Close()
		return err
	}
	defer func() { _ = prepared.Close() }()

	br := bufio.NewReaderSize(io.LimitReader(prepared, e.max), sniffLen)
	peek, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return perr.Wrap(err, perr.ErrorCodeCorrupt, "decode payload")
	}
	if len(peek) == 0 {
		return nil
	}
	res.FFB = hex.EncodeToString(peek[:min(ffbLen, len(peek))])

	mt := sniff(peek, declared)
	res.SniffedType = mt
	a, ok := e.reg.Lookup(mt)
	if !ok {
		return nil
	}
	res.Analyser = a.Name()
	return a.Analyse(ctx, &Input{
		Header:    h,
		HTTP:      head,
		Payload:   p,
		MediaType: mt,
		Charset:   normalize.Charset(declared),
		Body:      br,
	}, res)
}

// sniff detects the media type from the first bytes, preferring the declared type
// when detection only gets as far as a generic text or binary type
func sniff(head []byte, declared string) string {
	d := normalize.MediaType(declared)
	m := mimetype.Detect(head)
	got := normalize.MediaType(m.String())
	switch {
	case d == "":
		return got
	case got == octetStream:
		return d
	case got == "text/plain" && strings.HasPrefix(d, "text/"):
		return d
	}
	return got
}
