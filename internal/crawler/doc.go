// Package crawler holds the listing model, the request variants routed by the
// dispatcher, and the interfaces that connect the fetch layer, the handlers,
// and the persistence layer.
package crawler
