// Package ingestion turns source records into corpus entries and vectors.
//
// Nested JSON is flattened into dotted key paths with list indices
// (bank_acme.loans[0].rate), long values are split into overlapping word
// chunks, and each resulting fact is stored as "<key>: <value>" with its key
// path as the source. The Pipeline appends documents to the corpus and then
// embeds the new rows through the reembed package.
package ingestion
