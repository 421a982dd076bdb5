// Package enrichment fills placeholder wines from the barcode catalog.
//
// Enricher.Run is best effort. A missing credential, a provider failure, an
// empty catalog answer, or a wine deleted in the meantime all end the run
// without touching the wine, which stays eligible for manual edits or a later
// re-enrichment. On success only producer and label are written, each only
// when the catalog supplied a non-blank value, in a transaction of its own.
package enrichment
