// Package corpus enumerates candidate image files under a root directory.
//
// The walk is recursive and deterministic (lexical order within each
// directory). Only the file extension is inspected; a file with an image
// extension that fails to decode is still listed and left for the ranking
// layer to skip.
//
// # Error Handling
//
// A root that does not exist, or is not a directory, yields an empty list.
// Subdirectories that cannot be read are logged and skipped; the walk
// continues with their siblings. Symbolic links to directories are not
// followed.
package corpus
