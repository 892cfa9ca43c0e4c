// Package resource implements the HTTP facade of the node resources.
//
// GET /<prefix>/<name> returns the plain-text representation with a
// Cache-Control max-age for alarms. Adding ?observe to a websocket upgrade
// request streams the representation on every notification.
// /.well-known/core serves the CoRE link-format discovery document.
package resource
