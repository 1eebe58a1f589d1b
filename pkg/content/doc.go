// Package content defines the Open Veil resource model and the store contract.
//
// # Overview
//
// Open Veil publishes two resource kinds: Protocols (reusable experimental
// specifications) and Trials (community attempts at a Protocol). Both are stored
// as posts carrying a flat string metadata map and term assignments in seven
// fixed taxonomies.
//
// # Schema Tables
//
// The declared metadata keys, the taxonomy vocabulary list and the five-section
// questionnaire are plain data tables:
//
//	content.MetaFields(content.KindTrial)   // declared keys with types and ranges
//	content.Taxonomies                      // the seven vocabularies
//	content.QuestionnaireSchema             // section -> field -> type
//
// Questionnaire answers are stored flat, one metadata entry per field:
//
//	flat := content.FlattenQuestionnaire(answers)
//	nested := content.UnflattenQuestionnaire(rec.Meta)
//
// # Store
//
// Store is implemented by pkg/storage (memory), pkg/storage/sqlstore
// (PostgreSQL and SQLite) and decorated by pkg/storage/cache (Redis + LRU).
// Updates are separate calls per field group; callers must not assume atomicity
// across them.
//
// # Related Packages
//
//   - pkg/query: builds Query values from request parameters
//   - pkg/shape: turns Records into public JSON representations
package content
