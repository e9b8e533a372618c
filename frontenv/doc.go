// Package frontenv exposes a set of key/value pairs to a browser frontend
// by splicing a <script> element into HTML documents while they are
// streamed, right after the opening <head> tag.
package frontenv
