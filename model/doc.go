// Package model defines the JSON boundary types of the HTTP API and the CLI.
//
// Domain packages keep their own types; the From* projections here are the
// only place they are flattened for serialization. Byte values cross the
// boundary as 0x-prefixed hex, never base64.
package model
