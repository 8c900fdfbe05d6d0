// Package warc reads WARC/1.0 and WARC/1.1 container files
//
// Containers are either plain or gzip compressed with one member per record, the
// layout crawlers write so readers can seek to a record offset. A whole-file gzip
// holding many records is also accepted, with record lengths reported as unknown.
//
// The reader is strict: a malformed version line, header block, length or record
// trailer stops the container with an ErrorCodeCorrupt error, and every later call to
// Next returns that same error. Callers decide whether to skip to another container.
package warc
