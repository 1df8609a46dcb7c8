// Package core provides the row-validation pipeline for voter register extraction.
//
// This package is the heart of the converter. It has no knowledge of PDFs,
// directories, HTTP or databases; those live in the extract, batch, web and
// store packages and all drive the same entry point, [ProcessDocument].
//
// # Pipeline
//
// An extraction adapter yields raw rows lazily. Each row is:
//
//  1. Normalized by [NormalizeRow]: non-word runs collapse to one space,
//     empty cells are dropped.
//  2. Classified by [Classify] into [Valid], [Skip] or [Invalid].
//  3. Valid rows go through [Transform], which decodes the two Thaana
//     columns, and are handed to a [RecordWriter].
//  4. Invalid rows become [ErrorEntry] values on the [DocumentResult].
//
// Skip rows (a single cell) are extraction artifacts and are only counted.
//
// # Diagnostics
//
// [DocumentResult.Trail] renders a document's problems as one line:
//
//	PDF/list.pdf::Invalid row count encountered::["1" "Male" "x"]
//
// and [Report] joins those lines into the process-wide extraction report.
//
// # Output
//
// [CSVWriter] writes the canonical [Header] and one line per record, with an
// optional UTF-8 BOM and optional gzip compression.
//
// # Concurrency
//
// Processing one document is synchronous and pull-based. Parallelism across
// documents is bounded by [DocumentLimiter], shared by the batch runner and
// the HTTP service.
package core
