// Package models defines the transient data types shared across packages.
//
// [Song] and [VideoInfo] are produced per request and never cached;
// [StreamResponse] is the output of stream resolution and is wrapped by the
// cache package before anything touches durable storage.
package models
