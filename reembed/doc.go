// Package reembed embeds corpus entries and stores their vectors.
//
// It is used both to build vectors for newly ingested entries and to rebuild
// every vector when the embedding model changes. Batches are embedded with
// retry and exponential backoff, optionally paced by a rate limiter, and
// every vector is unit-normalized before it is stored so that squared L2
// distances map onto cosine similarity.
package reembed
