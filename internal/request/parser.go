// Package request tokenizes the first line of a client connection's byte
// buffer into a proxy request descriptor.
//
// Only the request line is interpreted (method, URI, version); no header
// parsing happens here, matching the proxy's scope of a pure request-line
// forwarder.
package request

import (
	"errors"
	"fmt"
	"strings"
)

// Method enumerates the two request verbs this proxy understands.
// Anything else fails to parse.
type Method string

const (
	MethodGet     Method = "GET"
	MethodConnect Method = "CONNECT"
)

// ErrParse is returned (wrapped with more context) for any malformed
// request line. Callers only need to distinguish "parsed" from "didn't".
var ErrParse = errors.New("request: parse failure")

// Descriptor is the result of parsing one request line.
// Created per connection, discarded before the socket closes.
type Descriptor struct {
	Method  Method
	Version string // third token, e.g. "HTTP/1.0"
	Host    string
	Port    string // empty if absent from the request line
	Path    string // always begins with "/"; only meaningful for GET
}

// Parse tokenizes buf (the raw bytes read from the client so far) into a
// Descriptor. buf must be at least 4 bytes; the caller's slice is never
// mutated.
//
// Algorithm (spec 4.A): isolate the line up to the first CRLF or LF, split
// it into method/URI/version, then dispatch on method for URI-specific
// parsing.
func Parse(buf []byte) (Descriptor, error) {
	if len(buf) < 4 {
		return Descriptor{}, fmt.Errorf("%w: buffer too short", ErrParse)
	}

	line := firstLine(buf)
	if line == "" {
		return Descriptor{}, fmt.Errorf("%w: no request line", ErrParse)
	}

	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Descriptor{}, fmt.Errorf("%w: expected method, URI, version, got %d tokens", ErrParse, len(fields))
	}

	method, uri, version := fields[0], fields[1], fields[2]

	switch Method(method) {
	case MethodConnect:
		return parseConnect(uri, version)
	case MethodGet:
		return parseGet(uri, version)
	default:
		return Descriptor{}, fmt.Errorf("%w: unsupported method %q", ErrParse, method)
	}
}

// firstLine returns the request line, with its terminating CRLF or LF
// stripped, or "" if neither is present in buf.
func firstLine(buf []byte) string {
	s := string(buf)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		line := s[:idx]
		return strings.TrimSuffix(line, "\r")
	}
	return ""
}

// parseConnect splits a CONNECT URI ("host:port") into its two parts.
// A missing colon is a parse failure per spec 4.A / 8 (no implicit port
// for CONNECT).
func parseConnect(uri, version string) (Descriptor, error) {
	host, port, ok := strings.Cut(uri, ":")
	if !ok || host == "" || port == "" {
		return Descriptor{}, fmt.Errorf("%w: CONNECT target %q missing host:port", ErrParse, uri)
	}
	return Descriptor{
		Method:  MethodConnect,
		Version: version,
		Host:    host,
		Port:    port,
	}, nil
}

// parseGet extracts host, optional port, and path from a GET URI, which may
// be either proxy-style (absolute: "http://host[:port]/path") or
// origin-style (already relative to the authority, e.g. "host[:port]/path"
// with no scheme).
func parseGet(uri, version string) (Descriptor, error) {
	authorityStart := 0
	if idx := strings.Index(uri, "://"); idx >= 0 {
		authorityStart = idx + len("://")
	}

	rest := uri[authorityStart:]

	path := "/"
	authority := rest
	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		authority = rest[:slash]
		path = rest[slash:]
	}

	host, port := authority, ""
	if h, p, ok := strings.Cut(authority, ":"); ok {
		host, port = h, p
	}

	if host == "" {
		return Descriptor{}, fmt.Errorf("%w: GET URI %q has empty host", ErrParse, uri)
	}

	return Descriptor{
		Method:  MethodGet,
		Version: version,
		Host:    host,
		Port:    port,
		Path:    path,
	}, nil
}
