// Package search answers similarity queries over ingested collections:
// the query text is embedded with the same model the pipeline used and
// matched against stored chunk vectors by cosine similarity.
package search
