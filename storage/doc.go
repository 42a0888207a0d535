// Package storage defines the collaborator interfaces the engine persists through
// and the binary codecs shared by its backends.
//
// Backends live in subpackages: badger (cache, index and workspace stores),
// redis (cache store) and sqlite (content records).
package storage
