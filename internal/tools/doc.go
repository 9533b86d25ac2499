// Package tools drives the external programs of the conversion chain:
// ufraw-batch for raw decoding, exiftool for reading and copying metadata,
// align_image_stack for exposure alignment, the pfstools chain for
// tonemapping and ImageMagick convert for blending and encoding.
//
// Every invocation goes through an Executor so tests can substitute a stub
// that records commands and fabricates outputs. Failures surface as *Error,
// which carries the tool name and the tail of its stderr.
package tools
