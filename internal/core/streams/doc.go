// Package streams undoes HTTP framing on captured payloads
//
// Two filters compose in a fixed order: Dechunk removes chunked transfer-encoding,
// then Decompress reverses content-encoding (gzip, br). Both peek at the head of the
// stream through a bufio.Reader so detection never consumes bytes the caller needs,
// and both return a ReadCloser whose Close closes the source.
package streams
