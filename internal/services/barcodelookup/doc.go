// Package barcodelookup queries a barcode catalog REST API for product
// details used to enrich placeholder wines.
//
// Lookups are cached per barcode with github.com/patrickmn/go-cache. Hits are
// kept for the configured TTL; "no products" answers are cached for a shorter
// negative TTL so a catalog that later learns the barcode is consulted again.
package barcodelookup
