// Package shape renders Protocol and Trial records as API representations.
//
// A representation carries the post fields, typed metadata, all seven
// taxonomies, the trial questionnaire and hypermedia links. Related records
// can be embedded with _embed and the output narrowed with _fields, where a
// dotted name such as meta.laser_power selects one key of an object field.
package shape
