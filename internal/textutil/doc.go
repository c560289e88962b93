// Package textutil provides text processing utilities for transcript
// similarity and filesystem-safe naming.
//
// The primary use cases are:
//   - Creating token-based fingerprints from transcript lines
//   - Computing cosine similarity between fingerprints for dedupe
//   - Slugging guild/channel names into filesystem-safe path segments
//
// Fingerprints use term frequency vectors normalized for efficient
// comparison. Tokenization lowercases text and splits on non-alphanumeric
// characters; single-character tokens are kept because spoken lines are
// often very short.
package textutil
