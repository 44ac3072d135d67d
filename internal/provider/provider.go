// Package provider groups the external data sources used for enrichment.
//
// Catalog adapters (spotify, itunes) implement musicinfo.ArtistProvider and
// are combined by musicinfo.Chain; the gemini adapter implements
// enrich.TextProvider. Interfaces live where they are consumed.
package provider
